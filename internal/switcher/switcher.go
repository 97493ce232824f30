// Package switcher sequences the account switch transaction: token refresh,
// device identity binding, editor-side integration, then index update.
package switcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/quota"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

// autoGeneratedLabel marks device history entries bound implicitly during a
// switch, as opposed to explicit user binds.
const autoGeneratedLabel = "auto_generated"

// Integration applies the switched-to account to the editor's own state,
// such as its token storage. It runs after the account is validated and
// before it becomes current, so a failing integration leaves the previous
// account active.
type Integration interface {
	OnAccountSwitch(ctx context.Context, acct *models.Account) error
}

// NopIntegration performs no editor-side work.
type NopIntegration struct{}

func (NopIntegration) OnAccountSwitch(context.Context, *models.Account) error { return nil }

// Switcher activates accounts.
type Switcher struct {
	store       *store.Store
	oauth       quota.OAuthClient
	device      store.DeviceProvider
	integration Integration
}

// New returns a switcher. A nil integration defaults to a no-op.
func New(s *store.Store, oauth quota.OAuthClient, device store.DeviceProvider, integration Integration) *Switcher {
	if integration == nil {
		integration = NopIntegration{}
	}
	return &Switcher{store: s, oauth: oauth, device: device, integration: integration}
}

// Switch makes the account current. The token is refreshed first so a dead
// account is rejected before any visible state changes; a rotated refresh
// token is persisted immediately. An account without a device profile gets a
// generated one bound under the auto_generated label.
func (sw *Switcher) Switch(ctx context.Context, id string) (*models.Account, error) {
	acct, err := sw.store.Get(id)
	if err != nil {
		return nil, err
	}

	fresh, rotated, err := sw.oauth.EnsureFreshToken(ctx, acct.Token)
	if err != nil {
		if isInvalidGrant(err) {
			logger.Warn("refresh token rejected during switch, disabling account", "id", id, "error", err)
			if _, derr := sw.store.Disable(id, err.Error()); derr != nil {
				logger.Error("failed to persist account disable", "id", id, "error", derr)
			}
			return nil, fmt.Errorf("%w: %v", quota.ErrInvalidGrant, err)
		}
		return nil, fmt.Errorf("failed to refresh token for switch: %w", err)
	}
	if rotated {
		if acct, err = sw.store.Upsert(acct.Email, "", fresh); err != nil {
			return nil, err
		}
	} else {
		acct.Token = fresh
	}

	if acct.DeviceProfile == nil {
		if acct, err = sw.bindGeneratedProfile(id); err != nil {
			return nil, err
		}
	}

	if err := sw.integration.OnAccountSwitch(ctx, acct); err != nil {
		return nil, fmt.Errorf("editor integration failed: %w", err)
	}

	if err := sw.store.SetCurrent(id); err != nil {
		return nil, err
	}
	acct, err = sw.store.Mutate(id, func(a *models.Account) error {
		a.UpdateLastUsed()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("switched account", "id", id, "email", acct.Email)
	return acct, nil
}

// bindGeneratedProfile fabricates a fresh device identity for an account
// that was never bound. The switch proceeds even when generation fails, so
// identity management never blocks account access.
func (sw *Switcher) bindGeneratedProfile(id string) (*models.Account, error) {
	if sw.device == nil {
		return sw.store.Get(id)
	}
	profile, err := sw.device.Generate()
	if err != nil {
		logger.Warn("device profile generation failed, switching without one", "id", id, "error", err)
		return sw.store.Get(id)
	}
	label := autoGeneratedLabel
	return sw.store.BindDeviceProfileWithProfile(id, profile, &label)
}

func isInvalidGrant(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid_grant")
}
