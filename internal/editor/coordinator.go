package editor

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
)

const shutdownPollInterval = 500 * time.Millisecond

// Coordinator sequences editor process control. Its operations are strictly
// sequential; callers must not run two coordinator operations concurrently.
type Coordinator struct {
	cfg  *config.Config
	goos string
}

// New returns a coordinator for the host platform.
func New(cfg *config.Config) *Coordinator {
	return &Coordinator{cfg: cfg, goos: runtime.GOOS}
}

// editorProcesses returns every process belonging to the editor, helpers
// included.
func (c *Coordinator) editorProcesses() ([]Snapshot, error) {
	snaps, err := snapshotProcesses()
	if err != nil {
		return nil, err
	}
	related := snaps[:0]
	for _, s := range snaps {
		if isEditorRelated(s, c.goos) || matchesConfiguredPath(s, c.cfg.EditorExecutable, c.goos) {
			related = append(related, s)
		}
	}
	return related, nil
}

// findMain picks the editor's main process out of snaps, preferring a match
// against the user-configured executable path.
func (c *Coordinator) findMain(snaps []Snapshot) (Snapshot, bool) {
	for _, s := range snaps {
		if matchesConfiguredPath(s, c.cfg.EditorExecutable, c.goos) {
			return s, true
		}
	}
	for _, s := range snaps {
		if isMainCandidate(s, c.goos) {
			return s, true
		}
	}
	return Snapshot{}, false
}

// IsRunning reports whether any editor process exists.
func (c *Coordinator) IsRunning() (bool, error) {
	snaps, err := c.editorProcesses()
	if err != nil {
		return false, err
	}
	return len(snaps) > 0, nil
}

// Close shuts the editor down in two phases: a graceful signal to the main
// process (or to everything when no main can be identified), a bounded wait,
// then a forceful kill of whatever remains.
func (c *Coordinator) Close(timeoutSecs int) error {
	snaps, err := c.editorProcesses()
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return nil
	}

	if main, ok := c.findMain(snaps); ok {
		logger.Info("closing editor", "pid", main.PID, "name", main.Name)
		if err := terminateProcess(main.PID); err != nil {
			logger.Warn("graceful signal failed", "pid", main.PID, "error", err)
		}
	} else {
		// Signaling helpers directly can pop "terminated unexpectedly"
		// dialogs, but with no identifiable main it is the only option.
		logger.Warn("no main editor process identified, signaling all", "count", len(snaps))
		for _, s := range snaps {
			if err := terminateProcess(s.PID); err != nil {
				logger.Debug("graceful signal failed", "pid", s.PID, "error", err)
			}
		}
	}

	gracePeriod := time.Duration(float64(timeoutSecs)*0.7) * time.Second
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		time.Sleep(shutdownPollInterval)
		remaining, err := c.editorProcesses()
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
	}

	remaining, err := c.editorProcesses()
	if err != nil {
		return err
	}
	for _, s := range remaining {
		logger.Warn("force killing editor process", "pid", s.PID, "name", s.Name)
		if err := killProcess(s.PID); err != nil {
			logger.Warn("force kill failed", "pid", s.PID, "error", err)
		}
	}
	time.Sleep(time.Second)

	remaining, err = c.editorProcesses()
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return fmt.Errorf("could not close the editor within %d seconds; please close it manually and try again", timeoutSecs)
	}
	return nil
}

// Start launches the editor. A configured executable path has the highest
// priority; otherwise the platform default is used.
func (c *Coordinator) Start() error {
	target, err := chooseLaunchTarget(c.goos, c.configuredExecutable(), c.cfg.EditorArgs, c.detectExecutable)
	if err != nil {
		return err
	}
	if target.path != "" {
		return launchExplicit(c.goos, target.path, target.args)
	}
	return launchDefault(c.goos, target.args)
}

// launchTarget is a resolved launch decision. An empty path means the
// platform default mechanism.
type launchTarget struct {
	path string
	args []string
}

// chooseLaunchTarget routes a launch request. A configured path always wins.
// On Windows the default mechanism is the URL scheme, which cannot carry
// arguments, so configured arguments force a launch of the auto-detected
// executable instead.
func chooseLaunchTarget(goos, configured string, args []string, detect func() (string, bool)) (launchTarget, error) {
	if configured != "" {
		return launchTarget{path: configured, args: args}, nil
	}
	if goos == "windows" && len(args) > 0 {
		path, ok := detect()
		if !ok {
			return launchTarget{}, fmt.Errorf("startup arguments are configured but the editor executable could not be detected; set the editor path explicitly")
		}
		return launchTarget{path: path, args: args}, nil
	}
	return launchTarget{args: args}, nil
}

// configuredExecutable returns the user-configured path when it exists on
// disk.
func (c *Coordinator) configuredExecutable() string {
	path := c.cfg.EditorExecutable
	if path == "" {
		return ""
	}
	if c.goos == "darwin" {
		path = normalizeBundlePath(path)
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("configured editor path does not exist", "path", path)
		return ""
	}
	return path
}

// ExecutablePath resolves the editor executable: a running process first,
// then the standard install locations.
func (c *Coordinator) ExecutablePath() (string, bool) {
	if path, ok := c.PathFromRunningProcess(); ok {
		return path, true
	}
	return probeInstallLocations(c.goos)
}

func (c *Coordinator) detectExecutable() (string, bool) {
	return c.ExecutablePath()
}

// PathFromRunningProcess returns the main process's executable path.
func (c *Coordinator) PathFromRunningProcess() (string, bool) {
	snaps, err := c.editorProcesses()
	if err != nil {
		return "", false
	}
	main, ok := c.findMain(snaps)
	if !ok || main.ExePath == "" {
		return "", false
	}
	return main.ExePath, true
}

// ArgsFromRunningProcess returns the main process's arguments, without the
// executable itself.
func (c *Coordinator) ArgsFromRunningProcess() ([]string, bool) {
	snaps, err := c.editorProcesses()
	if err != nil {
		return nil, false
	}
	main, ok := c.findMain(snaps)
	if !ok || len(main.Cmdline) < 2 {
		return nil, false
	}
	return main.Cmdline[1:], true
}

// UserDataDir resolves the editor's --user-data-dir, preferring configured
// arguments over a running process.
func (c *Coordinator) UserDataDir() (string, bool) {
	exists := func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}
	if dir, ok := parseUserDataDir(c.cfg.EditorArgs, exists); ok {
		return dir, true
	}
	if args, ok := c.ArgsFromRunningProcess(); ok {
		return parseUserDataDir(args, exists)
	}
	return "", false
}
