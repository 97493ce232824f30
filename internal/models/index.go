package models

import (
	"encoding/json"
	"sort"
)

// IndexVersion is the current on-disk schema version of the account index.
const IndexVersion = "2.0"

// ModelSet is a set of standardized model ids, serialized as a sorted array.
type ModelSet map[string]struct{}

// NewModelSet builds a set from the given ids.
func NewModelSet(ids ...string) ModelSet {
	s := make(ModelSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s ModelSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id, allocating the set if needed.
func (s *ModelSet) Add(id string) {
	if *s == nil {
		*s = ModelSet{}
	}
	(*s)[id] = struct{}{}
}

// Remove deletes id from the set.
func (s ModelSet) Remove(id string) {
	delete(s, id)
}

// Items returns the ids in sorted order.
func (s ModelSet) Items() []string {
	items := make([]string, 0, len(s))
	for id := range s {
		items = append(items, id)
	}
	sort.Strings(items)
	return items
}

// Clone returns an independent copy of the set.
func (s ModelSet) Clone() ModelSet {
	out := make(ModelSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// MarshalJSON serializes the set as a sorted JSON array.
func (s ModelSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

// UnmarshalJSON accepts a JSON array or null.
func (s *ModelSet) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewModelSet(items...)
	return nil
}

// AccountSummary is the lightweight per-account record kept in the index.
type AccountSummary struct {
	ID              string   `json:"id"`
	Email           string   `json:"email"`
	Name            string   `json:"name,omitempty"`
	Disabled        bool     `json:"disabled"`
	ProxyDisabled   bool     `json:"proxy_disabled"`
	ProtectedModels ModelSet `json:"protected_models"`
	CreatedAt       int64    `json:"created_at"`
	LastUsed        int64    `json:"last_used"`
}

// AccountIndex is the top-level accounts.json document. Unknown top-level
// fields survive a read-modify-write cycle.
type AccountIndex struct {
	Version          string
	Accounts         []AccountSummary
	CurrentAccountID *string

	extra map[string]json.RawMessage
}

// NewAccountIndex returns an empty index at the current schema version.
func NewAccountIndex() *AccountIndex {
	return &AccountIndex{
		Version:  IndexVersion,
		Accounts: []AccountSummary{},
	}
}

// Find returns the summary with the given id, or nil.
func (idx *AccountIndex) Find(id string) *AccountSummary {
	for i := range idx.Accounts {
		if idx.Accounts[i].ID == id {
			return &idx.Accounts[i]
		}
	}
	return nil
}

// FindByEmail returns the summary with the given email, or nil.
func (idx *AccountIndex) FindByEmail(email string) *AccountSummary {
	for i := range idx.Accounts {
		if idx.Accounts[i].Email == email {
			return &idx.Accounts[i]
		}
	}
	return nil
}

// Remove drops the summary with the given id and reports whether it existed.
// If it was the current account, the current selection is cleared.
func (idx *AccountIndex) Remove(id string) bool {
	for i := range idx.Accounts {
		if idx.Accounts[i].ID == id {
			idx.Accounts = append(idx.Accounts[:i], idx.Accounts[i+1:]...)
			if idx.CurrentAccountID != nil && *idx.CurrentAccountID == id {
				idx.CurrentAccountID = nil
			}
			return true
		}
	}
	return false
}

// SetCurrent records id as the current account.
func (idx *AccountIndex) SetCurrent(id string) {
	idx.CurrentAccountID = &id
}

func (idx *AccountIndex) MarshalJSON() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(idx.extra)+3)
	for k, v := range idx.extra {
		doc[k] = v
	}
	var err error
	if doc["version"], err = json.Marshal(idx.Version); err != nil {
		return nil, err
	}
	accounts := idx.Accounts
	if accounts == nil {
		accounts = []AccountSummary{}
	}
	if doc["accounts"], err = json.Marshal(accounts); err != nil {
		return nil, err
	}
	if doc["current_account_id"], err = json.Marshal(idx.CurrentAccountID); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func (idx *AccountIndex) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if raw, ok := doc["version"]; ok {
		if err := json.Unmarshal(raw, &idx.Version); err != nil {
			return err
		}
		delete(doc, "version")
	}
	if raw, ok := doc["accounts"]; ok {
		if err := json.Unmarshal(raw, &idx.Accounts); err != nil {
			return err
		}
		delete(doc, "accounts")
	}
	if raw, ok := doc["current_account_id"]; ok {
		if err := json.Unmarshal(raw, &idx.CurrentAccountID); err != nil {
			return err
		}
		delete(doc, "current_account_id")
	}
	if idx.Accounts == nil {
		idx.Accounts = []AccountSummary{}
	}
	if len(doc) > 0 {
		idx.extra = doc
	}
	return nil
}
