package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

// Upstream concurrency cap for batch refresh.
const refreshConcurrency = 5

// ErrInvalidGrant means the refresh token is permanently dead. The account
// has already been hard-disabled when this is returned.
var ErrInvalidGrant = errors.New("invalid_grant")

// HistoryRecorder persists quota snapshots. Recording must never fail a
// refresh; errors are logged and dropped.
type HistoryRecorder interface {
	RecordQuota(accountID, email string, quota models.QuotaData) error
}

// WarmupHook is invoked after a batch refresh for accounts whose protected
// models recovered, so the proxy can pre-warm them.
type WarmupHook interface {
	Warm(ctx context.Context, acct *models.Account)
}

// Engine fetches quotas and applies their side effects to the store.
type Engine struct {
	store   *store.Store
	oauth   OAuthClient
	api     QuotaAPI
	history HistoryRecorder
	warmup  WarmupHook
}

// NewEngine wires the engine to its collaborators.
func NewEngine(s *store.Store, oauth OAuthClient, api QuotaAPI) *Engine {
	return &Engine{store: s, oauth: oauth, api: api}
}

// SetHistoryRecorder enables quota history persistence.
func (e *Engine) SetHistoryRecorder(h HistoryRecorder) { e.history = h }

// SetWarmupHook enables post-refresh warmup of recovered accounts.
func (e *Engine) SetWarmupHook(w WarmupHook) { e.warmup = w }

func isInvalidGrant(err error) bool {
	return err != nil && strings.Contains(err.Error(), "invalid_grant")
}

// disableForInvalidGrant hard-disables the account and returns the sentinel.
func (e *Engine) disableForInvalidGrant(id string, cause error) error {
	logger.Warn("refresh token rejected, disabling account", "id", id, "error", cause)
	if _, derr := e.store.Disable(id, cause.Error()); derr != nil {
		logger.Error("failed to persist account disable", "id", id, "error", derr)
	}
	return fmt.Errorf("%w: %v", ErrInvalidGrant, cause)
}

// FetchWithRetry refreshes one account's quota. A rotated token is persisted
// through upsert; a 401 from the quota endpoint forces one token exchange
// and exactly one retry; a 403 on that retry marks the account forbidden
// with an empty quota instead of failing.
func (e *Engine) FetchWithRetry(ctx context.Context, id string) (*models.Account, error) {
	acct, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}

	fresh, rotated, err := e.oauth.EnsureFreshToken(ctx, acct.Token)
	if err != nil {
		if isInvalidGrant(err) {
			return nil, e.disableForInvalidGrant(id, err)
		}
		return nil, err
	}
	if rotated {
		if acct, err = e.store.Upsert(acct.Email, "", fresh); err != nil {
			return nil, err
		}
		e.fillDisplayName(ctx, acct)
	} else {
		acct.Token = fresh
	}

	result, err := e.api.Fetch(ctx, acct.Token.AccessToken, acct.Token.ProjectID)
	if err != nil {
		var se *StatusError
		if !errors.As(err, &se) || se.Code != 401 {
			return nil, err
		}

		// The access token was rejected even though it looked fresh.
		// Force an exchange and retry the quota call exactly once.
		forced, rerr := e.oauth.RefreshAccessToken(ctx, acct.Token)
		if rerr != nil {
			if isInvalidGrant(rerr) {
				return nil, e.disableForInvalidGrant(id, rerr)
			}
			return nil, rerr
		}
		if acct, rerr = e.store.Upsert(acct.Email, "", forced); rerr != nil {
			return nil, rerr
		}

		result, err = e.api.Fetch(ctx, acct.Token.AccessToken, acct.Token.ProjectID)
		if err != nil {
			if errors.As(err, &se) && se.Code == 403 {
				logger.Warn("quota endpoint returned 403, marking account forbidden", "id", id)
				return e.store.MarkForbidden(id, strings.TrimSpace(se.Body))
			}
			return nil, err
		}
	}

	if result.ProjectID != "" && result.ProjectID != acct.Token.ProjectID {
		projectID := result.ProjectID
		if _, err := e.store.Mutate(id, func(a *models.Account) error {
			a.Token.ProjectID = projectID
			return nil
		}); err != nil {
			return nil, err
		}
	}

	updated, err := e.store.UpdateQuota(id, result.Quota)
	if err != nil {
		return nil, err
	}
	e.record(updated, result.Quota)
	return updated, nil
}

func (e *Engine) fillDisplayName(ctx context.Context, acct *models.Account) {
	if acct.Name != "" {
		return
	}
	name, err := e.oauth.FetchUserInfo(ctx, acct.Token.AccessToken)
	if err != nil || name == "" {
		return
	}
	if _, err := e.store.Mutate(acct.ID, func(a *models.Account) error {
		a.Name = name
		return nil
	}); err != nil {
		logger.Warn("failed to persist display name", "id", acct.ID, "error", err)
		return
	}
	acct.Name = name
}

func (e *Engine) record(acct *models.Account, quota models.QuotaData) {
	if e.history == nil {
		return
	}
	if err := e.history.RecordQuota(acct.ID, acct.Email, quota); err != nil {
		logger.Warn("failed to record quota history", "id", acct.ID, "error", err)
	}
}

// RefreshStats summarizes a batch refresh.
type RefreshStats struct {
	Total   int
	Skipped int
	Success int
	Failed  int
	Details []string
}

// RefreshAll refreshes every account with at most five concurrent upstream
// requests. Only accounts already marked forbidden are skipped; disabled and
// proxy-disabled accounts are still refreshed so the user can retry them.
func (e *Engine) RefreshAll(ctx context.Context) (RefreshStats, error) {
	accounts, err := e.store.List()
	if err != nil {
		return RefreshStats{}, err
	}

	stats := RefreshStats{Total: len(accounts)}
	var mu sync.Mutex
	var recovered []*models.Account

	g := new(errgroup.Group)
	g.SetLimit(refreshConcurrency)
	for _, acct := range accounts {
		if acct.Quota != nil && acct.Quota.IsForbidden {
			stats.Skipped++
			continue
		}
		id, email := acct.ID, acct.Email
		protectedBefore := acct.ProtectedModels.Clone()

		g.Go(func() error {
			updated, err := e.FetchWithRetry(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				stats.Details = append(stats.Details, fmt.Sprintf("%s: %v", email, err))
				return nil
			}
			stats.Success++
			for model := range protectedBefore {
				if !updated.ProtectedModels.Has(model) {
					recovered = append(recovered, updated)
					break
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if e.warmup != nil {
		for _, acct := range recovered {
			e.warmup.Warm(ctx, acct)
		}
	}

	logger.Info("batch quota refresh finished",
		"total", stats.Total, "success", stats.Success,
		"failed", stats.Failed, "skipped", stats.Skipped)
	return stats, nil
}
