// Package editor locates, classifies, stops and starts the target editor's
// processes around account switches.
package editor

import (
	"path/filepath"
	"strings"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
)

// Snapshot is one process observed in an enumeration pass.
type Snapshot struct {
	PID     int32
	PPID    int32
	Name    string
	ExePath string
	Cmdline []string
}

// Electron-style helper process markers. A helper must never be treated as
// the main window process: signaling it produces crash dialogs.
var helperNameTokens = []string{
	"helper", "plugin", "renderer", "gpu", "crashpad",
	"utility", "audio", "sandbox", "language_server",
}

// Command-line markers of spawned tooling that runs under the editor's name
// but is not the editor itself.
var helperCmdTokens = []string{
	"--type=", "node-ipc", "nodeipc", "max-old-space-size", "node_modules",
}

func isHelper(p Snapshot) bool {
	cmdline := strings.ToLower(strings.Join(p.Cmdline, " "))
	for _, tok := range helperCmdTokens {
		if strings.Contains(cmdline, tok) {
			return true
		}
	}
	name := strings.ToLower(p.Name)
	for _, tok := range helperNameTokens {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(p.ExePath), "crashpad")
}

// isMainCandidate reports whether p looks like the editor's main process on
// the given platform, ignoring any user-configured path.
func isMainCandidate(p Snapshot, goos string) bool {
	if isHelper(p) {
		return false
	}
	name := strings.ToLower(p.Name)
	exe := strings.ToLower(p.ExePath)

	switch goos {
	case "darwin":
		bundle := strings.ToLower(config.EditorAppBundle())
		return strings.Contains(exe, bundle) && !strings.Contains(exe, "frameworks")
	case "windows":
		return name == config.EditorExeName()
	default:
		if strings.Contains(name, "tools") {
			return false
		}
		return name == config.EditorCommandName() ||
			strings.Contains(exe, "/"+config.EditorCommandName())
	}
}

// isEditorRelated reports whether p belongs to the editor at all, helpers
// included. Used for the are-we-done checks during shutdown.
func isEditorRelated(p Snapshot, goos string) bool {
	token := config.EditorProcessToken()
	name := strings.ToLower(p.Name)
	if goos != "windows" && strings.Contains(name, "tools") {
		return false
	}
	if strings.Contains(name, token) {
		return true
	}
	return strings.Contains(strings.ToLower(p.ExePath), token)
}

// matchesConfiguredPath reports whether p runs the user-configured
// executable. This match has the highest priority but still refuses
// helpers. On the bundle platform a shared .app prefix counts as a match,
// since the configured path may point at the bundle while the process runs
// the binary inside it.
func matchesConfiguredPath(p Snapshot, configured, goos string) bool {
	if configured == "" || p.ExePath == "" || isHelper(p) {
		return false
	}
	exe := filepath.Clean(p.ExePath)
	want := filepath.Clean(configured)
	if exe == want {
		return true
	}
	if goos == "darwin" {
		if exeBundle, ok := bundleRoot(exe); ok {
			if wantBundle, ok := bundleRoot(want); ok {
				return strings.EqualFold(exeBundle, wantBundle)
			}
		}
	}
	return false
}

// bundleRoot returns the path up to and including the first ".app"
// component.
func bundleRoot(path string) (string, bool) {
	i := strings.Index(strings.ToLower(path), ".app")
	if i < 0 {
		return "", false
	}
	return path[:i+len(".app")], true
}

// parseUserDataDir extracts the --user-data-dir value from an argument list.
// Both the separate-argument and the key=value forms are recognized; the
// key=value form must name an existing path to be trusted.
func parseUserDataDir(args []string, exists func(string) bool) (string, bool) {
	for i, arg := range args {
		if arg == "--user-data-dir" && i+1 < len(args) {
			return args[i+1], true
		}
		if v, ok := strings.CutPrefix(arg, "--user-data-dir="); ok && v != "" {
			if exists(v) {
				return v, true
			}
		}
	}
	return "", false
}
