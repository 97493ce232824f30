// Package notify delivers fire-and-forget account events to interested
// collaborators such as the request proxy and the desktop shell.
package notify

// EventKind identifies the account event being signaled.
type EventKind int

const (
	// EventAccountReloaded means one account's detail changed and should be re-read.
	EventAccountReloaded EventKind = iota
	// EventAccountDeleted means an account was removed from the store.
	EventAccountDeleted
	// EventAccountsRefreshed means the whole index should be re-read.
	EventAccountsRefreshed
)

// Event is one notification. AccountID is empty for EventAccountsRefreshed.
type Event struct {
	Kind      EventKind
	AccountID string
}

// Notifier receives best-effort account change signals. Implementations must
// not block the caller; delivery is unordered with respect to other control
// flow and consumers re-read state rather than trusting event ordering.
type Notifier interface {
	AccountReloaded(id string)
	AccountDeleted(id string)
	AccountsRefreshed()
}

// NopNotifier discards all signals.
type NopNotifier struct{}

func (NopNotifier) AccountReloaded(string) {}
func (NopNotifier) AccountDeleted(string)  {}
func (NopNotifier) AccountsRefreshed()     {}

// ChannelNotifier fans events out over a buffered channel. When the buffer is
// full the oldest pending event is dropped so senders never block.
type ChannelNotifier struct {
	events chan Event
}

// NewChannelNotifier creates a notifier with the given buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelNotifier{events: make(chan Event, buffer)}
}

// Events returns the receive side of the notifier.
func (n *ChannelNotifier) Events() <-chan Event {
	return n.events
}

func (n *ChannelNotifier) send(ev Event) {
	select {
	case n.events <- ev:
	default:
		// Buffer full. Drop the oldest event to make room; consumers
		// re-read state anyway so a lost intermediate event is harmless.
		select {
		case <-n.events:
		default:
		}
		select {
		case n.events <- ev:
		default:
		}
	}
}

func (n *ChannelNotifier) AccountReloaded(id string) {
	n.send(Event{Kind: EventAccountReloaded, AccountID: id})
}

func (n *ChannelNotifier) AccountDeleted(id string) {
	n.send(Event{Kind: EventAccountDeleted, AccountID: id})
}

func (n *ChannelNotifier) AccountsRefreshed() {
	n.send(Event{Kind: EventAccountsRefreshed})
}
