package notify

import (
	"github.com/gen2brain/beeep"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
)

// Alerter shows a user-facing desktop alert.
type Alerter interface {
	Alert(title, message string)
}

// NopAlerter discards alerts.
type NopAlerter struct{}

func (NopAlerter) Alert(string, string) {}

// DesktopAlerter shows native desktop notifications.
type DesktopAlerter struct{}

// Alert displays a desktop notification. Failures are logged and dropped;
// an alert must never fail the operation that raised it.
func (DesktopAlerter) Alert(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		logger.Debug("desktop notification failed", "title", title, "error", err)
	}
}
