// Package models defines data structures and domain types.
package models

import "time"

// TokenData holds the OAuth credentials for one account.
type TokenData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Email        string `json:"email,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// NewTokenData builds a TokenData with an absolute expiry computed from expiresIn seconds.
func NewTokenData(accessToken, refreshToken string, expiresIn int64, email, projectID, sessionID string) TokenData {
	return TokenData{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Unix() + expiresIn,
		Email:        email,
		ProjectID:    projectID,
		SessionID:    sessionID,
	}
}

// IsExpired reports whether the access token has passed its expiry,
// with a safety buffer so callers refresh slightly early.
func (t TokenData) IsExpired(buffer time.Duration) bool {
	return time.Now().Add(buffer).Unix() >= t.ExpiresAt
}

// DeviceProfile is the machine fingerprint written into the editor's
// identity file by the platform integration collaborator.
type DeviceProfile struct {
	MachineID    string `json:"machine_id"`
	MacMachineID string `json:"mac_machine_id"`
	DevDeviceID  string `json:"dev_device_id"`
	SqmID        string `json:"sqm_id"`
}

// DeviceProfileVersion is one entry in an account's device profile history.
type DeviceProfileVersion struct {
	ID        string        `json:"id"`
	CreatedAt int64         `json:"created_at"`
	Label     string        `json:"label"`
	Profile   DeviceProfile `json:"profile"`
	IsCurrent bool          `json:"is_current"`
}

// Account is the full record persisted in its own detail file.
type Account struct {
	ID                  string                 `json:"id"`
	Email               string                 `json:"email"`
	Name                string                 `json:"name,omitempty"`
	Token               TokenData              `json:"token"`
	Disabled            bool                   `json:"disabled"`
	DisabledReason      string                 `json:"disabled_reason,omitempty"`
	DisabledAt          *int64                 `json:"disabled_at,omitempty"`
	ProxyDisabled       bool                   `json:"proxy_disabled"`
	ProxyDisabledReason string                 `json:"proxy_disabled_reason,omitempty"`
	ProxyDisabledAt     *int64                 `json:"proxy_disabled_at,omitempty"`
	Quota               *QuotaData             `json:"quota,omitempty"`
	ProtectedModels     ModelSet               `json:"protected_models"`
	DeviceProfile       *DeviceProfile         `json:"device_profile,omitempty"`
	DeviceHistory       []DeviceProfileVersion `json:"device_history"`
	CreatedAt           int64                  `json:"created_at"`
	LastUsed            int64                  `json:"last_used"`
}

// NewAccount creates an account with fresh timestamps.
func NewAccount(id, email string, token TokenData) *Account {
	now := time.Now().Unix()
	return &Account{
		ID:              id,
		Email:           email,
		Token:           token,
		ProtectedModels: ModelSet{},
		DeviceHistory:   []DeviceProfileVersion{},
		CreatedAt:       now,
		LastUsed:        now,
	}
}

// UpdateLastUsed bumps the last-used timestamp to now.
func (a *Account) UpdateLastUsed() {
	a.LastUsed = time.Now().Unix()
}

// UpdateQuota replaces the account quota with a fresh fetch result.
func (a *Account) UpdateQuota(q QuotaData) {
	q.LastUpdated = time.Now().Unix()
	a.Quota = &q
}

// Disable hard-disables the account, recording the reason and time.
func (a *Account) Disable(reason string) {
	now := time.Now().Unix()
	a.Disabled = true
	a.DisabledReason = reason
	a.DisabledAt = &now
}

// ClearDisabled removes the hard-disable flag and its metadata.
func (a *Account) ClearDisabled() {
	a.Disabled = false
	a.DisabledReason = ""
	a.DisabledAt = nil
}

// SetProxyDisabled flips the soft proxy-routing disable flag.
func (a *Account) SetProxyDisabled(disabled bool, reason string) {
	a.ProxyDisabled = disabled
	if disabled {
		now := time.Now().Unix()
		a.ProxyDisabledReason = reason
		a.ProxyDisabledAt = &now
	} else {
		a.ProxyDisabledReason = ""
		a.ProxyDisabledAt = nil
	}
}

// Summary projects the account onto its index representation.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:              a.ID,
		Email:           a.Email,
		Name:            a.Name,
		Disabled:        a.Disabled,
		ProxyDisabled:   a.ProxyDisabled,
		ProtectedModels: a.ProtectedModels.Clone(),
		CreatedAt:       a.CreatedAt,
		LastUsed:        a.LastUsed,
	}
}
