package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
)

// Add registers a new account. Emails are unique; a duplicate returns
// ErrDuplicate. The first account ever added becomes the current account.
func (s *Store) Add(email, name string, token models.TokenData) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	if idx.FindByEmail(email) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, email)
	}

	acct := models.NewAccount(uuid.NewString(), email, token)
	acct.Name = name
	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}

	idx.Accounts = append(idx.Accounts, acct.Summary())
	if idx.CurrentAccountID == nil {
		idx.SetCurrent(acct.ID)
	}
	if err := s.saveIndex(idx); err != nil {
		return nil, err
	}

	logger.Info("account added", "id", acct.ID, "email", email)
	s.notifier.AccountsRefreshed()
	return acct, nil
}

// Upsert replaces the token (and name, when given) of the account with this
// email, or adds a new account when the email is unknown. A changed refresh
// token clears a hard-disable, since the credentials were re-proven. A missing
// detail file for an indexed email is recreated from the incoming token.
func (s *Store) Upsert(email, name string, token models.TokenData) (*models.Account, error) {
	s.mu.Lock()

	idx, err := s.LoadIndex()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sum := idx.FindByEmail(email)
	if sum == nil {
		// Add takes the mutex itself; release before delegating.
		s.mu.Unlock()
		return s.Add(email, name, token)
	}
	defer s.mu.Unlock()

	acct, err := s.loadAccount(sum.ID)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("detail file missing for indexed account, recreating", "id", sum.ID, "email", email)
		acct = models.NewAccount(sum.ID, email, token)
		acct.Name = sum.Name
		acct.CreatedAt = sum.CreatedAt
	} else if err != nil {
		return nil, err
	}

	tokenChanged := acct.Token.RefreshToken != token.RefreshToken
	acct.Token = token
	if name != "" {
		acct.Name = name
	}
	if tokenChanged && acct.Disabled {
		logger.Info("refresh token changed, clearing disabled state", "id", acct.ID)
		acct.ClearDisabled()
	}
	acct.UpdateLastUsed()

	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}
	if err := s.syncSummary(idx, acct); err != nil {
		return nil, err
	}
	s.notifier.AccountReloaded(acct.ID)
	return acct, nil
}

// Delete removes the account and its detail file. Deleting the current
// account advances the selection to the first remaining account.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}
	if !idx.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if idx.CurrentAccountID == nil && len(idx.Accounts) > 0 {
		idx.SetCurrent(idx.Accounts[0].ID)
	}
	if err := s.saveIndex(idx); err != nil {
		return err
	}
	if err := os.Remove(s.detailPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed_to_delete_account: %w", err)
	}

	logger.Info("account deleted", "id", id)
	s.notifier.AccountDeleted(id)
	return nil
}

// DeleteMany removes several accounts in one index write and returns how many
// were actually removed. Unknown ids are ignored.
func (s *Store) DeleteMany(ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if idx.Remove(id) {
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if idx.CurrentAccountID == nil && len(idx.Accounts) > 0 {
		idx.SetCurrent(idx.Accounts[0].ID)
	}
	if err := s.saveIndex(idx); err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := os.Remove(s.detailPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to delete account detail file", "id", id, "error", err)
		}
	}

	logger.Info("accounts deleted", "count", removed)
	s.notifier.AccountsRefreshed()
	return removed, nil
}

// Reorder rebuilds the account list in the given order. Ids absent from the
// order keep their pre-existing relative order at the tail; unknown ids are
// ignored.
func (s *Store) Reorder(orderedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}

	placed := make(map[string]bool, len(orderedIDs))
	reordered := make([]models.AccountSummary, 0, len(idx.Accounts))
	for _, id := range orderedIDs {
		if placed[id] {
			continue
		}
		if sum := idx.Find(id); sum != nil {
			reordered = append(reordered, *sum)
			placed[id] = true
		}
	}
	for _, sum := range idx.Accounts {
		if !placed[sum.ID] {
			reordered = append(reordered, sum)
		}
	}
	idx.Accounts = reordered

	if err := s.saveIndex(idx); err != nil {
		return err
	}
	s.notifier.AccountsRefreshed()
	return nil
}

// SetCurrent marks the account as active.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return err
	}
	if idx.Find(id) == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	idx.SetCurrent(id)
	return s.saveIndex(idx)
}

// CurrentID returns the active account id, or empty when none is active.
func (s *Store) CurrentID() (string, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return "", err
	}
	if idx.CurrentAccountID == nil {
		return "", nil
	}
	return *idx.CurrentAccountID, nil
}

// Current returns the active account, or (nil, nil) when none is active.
func (s *Store) Current() (*models.Account, error) {
	id, err := s.CurrentID()
	if err != nil || id == "" {
		return nil, err
	}
	return s.loadAccount(id)
}

// Get returns the full account record for id.
func (s *Store) Get(id string) (*models.Account, error) {
	return s.loadAccount(id)
}

// List returns the full records for every indexed account, in index order.
// Unreadable detail files are logged and skipped; they are never removed from
// the index, since absence can be a transient filesystem condition.
func (s *Store) List() ([]*models.Account, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	accounts := make([]*models.Account, 0, len(idx.Accounts))
	for _, sum := range idx.Accounts {
		acct, err := s.loadAccount(sum.ID)
		if err != nil {
			logger.Warn("skipping unreadable account detail", "id", sum.ID, "error", err)
			continue
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// ListSummaries returns the lightweight index entries, in index order.
func (s *Store) ListSummaries() ([]models.AccountSummary, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	return idx.Accounts, nil
}

// FindIDByEmail resolves an email to an account id.
func (s *Store) FindIDByEmail(email string) (string, error) {
	idx, err := s.LoadIndex()
	if err != nil {
		return "", err
	}
	sum := idx.FindByEmail(email)
	if sum == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return sum.ID, nil
}

// Mutate loads the account, applies fn, and persists both the detail and the
// index mirror under the mutex. When fn returns an error nothing is saved and
// no signal is raised.
func (s *Store) Mutate(id string, fn func(*models.Account) error) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	acct, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}
	if err := fn(acct); err != nil {
		return nil, err
	}
	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}
	if err := s.syncSummary(idx, acct); err != nil {
		return nil, err
	}
	s.notifier.AccountReloaded(id)
	return acct, nil
}

// UpdateQuota stores a fresh quota fetch result and recomputes per-model
// protection (see protection.go). The summary mirror is patched and the
// Notifier signaled so the proxy reloads the account.
func (s *Store) UpdateQuota(id string, quota models.QuotaData) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	acct, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}

	acct.UpdateQuota(quota)
	newlyProtected := applyProtection(acct, s.protection, s.mappings)

	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}
	if err := s.syncSummary(idx, acct); err != nil {
		return nil, err
	}

	for _, model := range newlyProtected {
		s.alerter.Alert("Quota protection", fmt.Sprintf("%s: %s is low and was protected", acct.Email, model))
	}
	s.notifier.AccountReloaded(id)
	return acct, nil
}

// ToggleProxyStatus flips the soft proxy-routing disable flag.
func (s *Store) ToggleProxyStatus(id string, disabled bool, reason string) (*models.Account, error) {
	return s.Mutate(id, func(acct *models.Account) error {
		acct.SetProxyDisabled(disabled, reason)
		return nil
	})
}

// Disable hard-disables the account, typically after the upstream reported
// the refresh token as permanently invalid.
func (s *Store) Disable(id, reason string) (*models.Account, error) {
	acct, err := s.Mutate(id, func(acct *models.Account) error {
		acct.Disable(reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.alerter.Alert("Account disabled", fmt.Sprintf("%s: %s", acct.Email, reason))
	return acct, nil
}

// MarkForbidden marks the account's quota as forbidden and soft-disables it
// from proxy routing, then signals a full refresh.
func (s *Store) MarkForbidden(id, reason string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}
	acct, err := s.loadAccount(id)
	if err != nil {
		return nil, err
	}

	if acct.Quota == nil {
		q := models.ForbiddenQuota(reason)
		acct.Quota = &q
	} else {
		acct.Quota.IsForbidden = true
		acct.Quota.ForbiddenReason = reason
	}
	acct.SetProxyDisabled(true, fmt.Sprintf("Forbidden (403): %s", reason))

	if err := s.saveAccount(acct); err != nil {
		return nil, err
	}
	if err := s.syncSummary(idx, acct); err != nil {
		return nil, err
	}

	s.alerter.Alert("Account forbidden", fmt.Sprintf("%s: %s", acct.Email, reason))
	s.notifier.AccountsRefreshed()
	return acct, nil
}

// ExportByIDs projects the selected accounts to email and refresh-token
// pairs. Unreadable accounts are logged and skipped.
func (s *Store) ExportByIDs(ids []string) (models.AccountExport, error) {
	export := models.AccountExport{Accounts: []models.AccountExportItem{}}
	for _, id := range ids {
		acct, err := s.loadAccount(id)
		if err != nil {
			logger.Warn("skipping account during export", "id", id, "error", err)
			continue
		}
		export.Accounts = append(export.Accounts, models.AccountExportItem{
			Email:        acct.Email,
			RefreshToken: acct.Token.RefreshToken,
		})
	}
	return export, nil
}
