package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/db"
	"github.com/j-veylop/antigravity-account-manager/internal/device"
	"github.com/j-veylop/antigravity-account-manager/internal/editor"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/notify"
	"github.com/j-veylop/antigravity-account-manager/internal/quota"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
	"github.com/j-veylop/antigravity-account-manager/internal/switcher"
)

// app bundles the wired collaborators each command needs. Commands are
// short-lived, so everything is constructed per invocation.
type app struct {
	cfg         *config.Config
	store       *store.Store
	coordinator *editor.Coordinator
	devices     *device.Manager
	history     *db.DB
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := store.New(cfg, nil, notify.DesktopAlerter{})
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}

	coordinator := editor.New(cfg)
	devices := device.NewManager(coordinator.UserDataDir)

	history, err := db.Open(cfg.HistoryDBPath)
	if err != nil {
		// History is a convenience; the core commands work without it.
		logger.Warn("quota history unavailable", "path", cfg.HistoryDBPath, "error", err)
		history = nil
	}

	return &app{
		cfg:         cfg,
		store:       s,
		coordinator: coordinator,
		devices:     devices,
		history:     history,
	}, nil
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			logger.Debug("failed to close history database", "error", err)
		}
	}
}

// engine builds the quota engine with history recording wired in.
func (a *app) engine() *quota.Engine {
	e := quota.NewEngine(a.store, quota.NewClient(a.cfg), quota.NewAPI())
	if a.history != nil {
		e.SetHistoryRecorder(a.history)
	}
	return e
}

// switcher builds the switch orchestrator with the editor-restart
// integration.
func (a *app) switcher() *switcher.Switcher {
	integ := &editorIntegration{coordinator: a.coordinator, devices: a.devices, timeout: a.cfg.EditorCloseTimeout}
	return switcher.New(a.store, quota.NewClient(a.cfg), a.devices, integ)
}

// resolveAccountID accepts either an account id or an email address.
func (a *app) resolveAccountID(arg string) (string, error) {
	if _, err := a.store.Get(arg); err == nil {
		return arg, nil
	}
	if strings.Contains(arg, "@") {
		if id, err := a.store.FindIDByEmail(arg); err == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("no account matches %q: %w", arg, store.ErrNotFound)
}

// editorIntegration is the switch-time collaborator: it stops the editor,
// injects the account's device identity into storage.json, and restarts the
// editor when it was running before the switch.
type editorIntegration struct {
	coordinator *editor.Coordinator
	devices     *device.Manager
	timeout     time.Duration
}

func (i *editorIntegration) OnAccountSwitch(_ context.Context, acct *models.Account) error {
	wasRunning, err := i.coordinator.IsRunning()
	if err != nil {
		return fmt.Errorf("failed to check editor state: %w", err)
	}
	if wasRunning {
		if err := i.coordinator.Close(int(i.timeout.Seconds())); err != nil {
			return err
		}
	}

	if acct.DeviceProfile != nil {
		if err := i.devices.ApplyProfile(*acct.DeviceProfile); err != nil {
			// A missing user data dir is expected on headless hosts; the
			// switch must still go through.
			logger.Warn("could not apply device profile", "id", acct.ID, "error", err)
		}
	}

	if wasRunning {
		if err := i.coordinator.Start(); err != nil {
			return err
		}
	}
	return nil
}
