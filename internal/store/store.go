// Package store persists accounts as a JSON index plus one detail file per
// account, with crash-safe writes and inline recovery from index corruption.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/notify"
)

const (
	indexFileName = "accounts.json"
	detailDirName = "accounts"
	filePerm      = 0o600
	dirPerm       = 0o750
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store manages the account index and detail files under one data directory.
// All mutating operations serialize on a single process-wide mutex; read-only
// operations go straight to disk.
type Store struct {
	dataDir    string
	protection config.QuotaProtection
	mappings   map[string]string
	notifier   notify.Notifier
	alerter    notify.Alerter

	mu sync.Mutex
}

// New creates a store rooted at cfg.DataDir, creating the layout if needed.
// Nil notifier or alerter default to no-ops.
func New(cfg *config.Config, notifier notify.Notifier, alerter notify.Alerter) (*Store, error) {
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if alerter == nil {
		alerter = notify.NopAlerter{}
	}
	s := &Store{
		dataDir:    cfg.DataDir,
		protection: cfg.QuotaProtection,
		mappings:   cfg.ModelMappings,
		notifier:   notifier,
		alerter:    alerter,
	}
	if err := os.MkdirAll(s.detailDir(), dirPerm); err != nil {
		return nil, fmt.Errorf("failed_to_create_account_dir: %w", err)
	}
	return s, nil
}

// DataDir returns the directory the store persists into.
func (s *Store) DataDir() string { return s.dataDir }

func (s *Store) indexPath() string { return filepath.Join(s.dataDir, indexFileName) }

func (s *Store) detailDir() string { return filepath.Join(s.dataDir, detailDirName) }

func (s *Store) detailPath(id string) string {
	return filepath.Join(s.detailDir(), id+".json")
}

// LoadIndex reads the account index. The load is total: a missing, empty, or
// unparseable index is rebuilt from the detail files and never surfaces a
// parse error to the caller.
func (s *Store) LoadIndex() (*models.AccountIndex, error) {
	raw, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("account index missing, rebuilding from detail files")
			return s.recoverIndex(), nil
		}
		return nil, fmt.Errorf("failed_to_read_account_index: %w", err)
	}

	text := sanitizeIndexBytes(raw)
	if strings.TrimSpace(text) == "" {
		logger.Warn("account index is empty, rebuilding from detail files")
		return s.recoverIndex(), nil
	}

	var idx models.AccountIndex
	if err := json.Unmarshal([]byte(text), &idx); err != nil {
		logger.Warn("account index is corrupt, rebuilding from detail files", "error", err)
		s.backupCorruptIndex(raw)
		return s.recoverIndex(), nil
	}
	return &idx, nil
}

// sanitizeIndexBytes strips a UTF-8 byte-order mark and any run of leading
// NUL bytes, then replaces invalid UTF-8 sequences instead of rejecting them.
// Editors and interrupted writes on some filesystems produce both artifacts.
func sanitizeIndexBytes(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	raw = bytes.TrimLeft(raw, "\x00")
	return strings.ToValidUTF8(string(raw), "�")
}

// backupCorruptIndex preserves the original bytes of an unparseable index so
// the user can inspect or hand-repair it. Backups are never auto-deleted.
func (s *Store) backupCorruptIndex(raw []byte) {
	backup := fmt.Sprintf("%s.corrupt-%d-%s", s.indexPath(), time.Now().Unix(), uuid.NewString())
	if err := os.WriteFile(backup, raw, filePerm); err != nil {
		logger.Warn("failed to back up corrupt account index", "path", backup, "error", err)
		return
	}
	logger.Info("backed up corrupt account index", "path", backup)
}

// recoverIndex rebuilds the index from detail files and tries to persist the
// result. The save uses a non-blocking acquire: recovery can run inside an
// operation that already holds the mutex, in which case that operation will
// write the index itself.
func (s *Store) recoverIndex() *models.AccountIndex {
	idx := s.rebuildFromDetails()
	if s.mu.TryLock() {
		if err := s.saveIndex(idx); err != nil {
			logger.Warn("failed to persist rebuilt account index", "error", err)
		}
		s.mu.Unlock()
	} else {
		logger.Debug("account index lock busy, rebuilt index will be persisted on next save")
	}
	return idx
}

// rebuildFromDetails scans the detail directory and reconstructs the index.
// The result is deterministic: sorted by last_used descending, then email
// ascending, with the first entry as the current account.
func (s *Store) rebuildFromDetails() *models.AccountIndex {
	idx := models.NewAccountIndex()

	entries, err := os.ReadDir(s.detailDir())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to scan account detail directory", "error", err)
		}
		return idx
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		acct, err := s.loadAccountFile(filepath.Join(s.detailDir(), entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable account detail during rebuild", "file", entry.Name(), "error", err)
			continue
		}
		idx.Accounts = append(idx.Accounts, acct.Summary())
	}

	sort.SliceStable(idx.Accounts, func(i, j int) bool {
		if idx.Accounts[i].LastUsed != idx.Accounts[j].LastUsed {
			return idx.Accounts[i].LastUsed > idx.Accounts[j].LastUsed
		}
		return idx.Accounts[i].Email < idx.Accounts[j].Email
	})
	if len(idx.Accounts) > 0 {
		idx.SetCurrent(idx.Accounts[0].ID)
	}
	return idx
}

func (s *Store) saveIndex(idx *models.AccountIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed_to_serialize_account_index: %w", err)
	}
	if err := WriteFileAtomic(s.indexPath(), data, filePerm); err != nil {
		return fmt.Errorf("failed_to_write_account_index: %w", err)
	}
	return nil
}

func (s *Store) loadAccountFile(path string) (*models.Account, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed_to_read_account: %w", err)
	}
	var acct models.Account
	if err := json.Unmarshal(raw, &acct); err != nil {
		return nil, fmt.Errorf("failed_to_parse_account: %w", err)
	}
	return &acct, nil
}

func (s *Store) loadAccount(id string) (*models.Account, error) {
	path := s.detailPath(id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.loadAccountFile(path)
}

func (s *Store) saveAccount(acct *models.Account) error {
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return fmt.Errorf("failed_to_serialize_account: %w", err)
	}
	if err := WriteFileAtomic(s.detailPath(acct.ID), data, filePerm); err != nil {
		return fmt.Errorf("failed_to_write_account: %w", err)
	}
	return nil
}

// syncSummary refreshes the index mirror of acct and writes the index.
// Caller must hold the mutex.
func (s *Store) syncSummary(idx *models.AccountIndex, acct *models.Account) error {
	if sum := idx.Find(acct.ID); sum != nil {
		*sum = acct.Summary()
	}
	return s.saveIndex(idx)
}
