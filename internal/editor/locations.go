package editor

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/j-veylop/antigravity-account-manager/internal/uagent"
)

// probeInstallLocations checks each platform's conventional install paths.
func probeInstallLocations(goos string) (string, bool) {
	home, _ := os.UserHomeDir()

	var candidates []string
	switch goos {
	case "darwin":
		candidates = []string{
			"/Applications/Antigravity.app/Contents/MacOS/Electron",
			filepath.Join(home, "Applications", "Antigravity.app", "Contents", "MacOS", "Electron"),
			"/Applications/Antigravity.app",
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			candidates = append(candidates,
				filepath.Join(localAppData, "Programs", "Antigravity", "antigravity.exe"))
		}
		candidates = append(candidates,
			`C:\Program Files\Antigravity\antigravity.exe`)
	default:
		candidates = []string{
			"/usr/bin/antigravity",
			"/usr/local/bin/antigravity",
			"/opt/antigravity/antigravity",
			filepath.Join(home, ".local", "bin", "antigravity"),
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// InstalledVersion reads the installed editor's version from its metadata
// files. Wired into User-Agent version resolution as the local source.
func InstalledVersion() (string, bool) {
	goos := runtime.GOOS
	exe, ok := probeInstallLocations(goos)
	if !ok {
		return "", false
	}

	var metaFiles []string
	if goos == "darwin" {
		if bundle, ok := bundleRoot(exe); ok {
			metaFiles = append(metaFiles, filepath.Join(bundle, "Contents", "Info.plist"))
		}
	} else {
		dir := filepath.Dir(exe)
		metaFiles = append(metaFiles,
			filepath.Join(dir, "resources", "app", "package.json"),
			filepath.Join(dir, "version"),
		)
	}

	for _, path := range metaFiles {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if v, ok := uagent.ParseVersion(string(raw)); ok {
			return v, true
		}
	}
	return "", false
}
