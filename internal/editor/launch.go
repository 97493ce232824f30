package editor

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/logger"
)

// normalizeBundlePath corrects a configured path that points inside an
// application bundle back to the bundle root, which is what the system
// launcher expects.
func normalizeBundlePath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".app") {
		return path
	}
	if root, ok := bundleRoot(path); ok {
		logger.Debug("correcting configured path to bundle root", "path", path, "bundle", root)
		return root
	}
	return path
}

// launchExplicit starts the editor from a user-configured executable path.
func launchExplicit(goos, path string, args []string) error {
	if goos == "darwin" && strings.HasSuffix(strings.ToLower(path), ".app") {
		openArgs := []string{"-a", path}
		if len(args) > 0 {
			openArgs = append(openArgs, "--args")
			openArgs = append(openArgs, args...)
		}
		// "open" returns promptly, so a combined run is safe and its exit
		// status is the only launch failure signal we get.
		out, err := exec.Command("open", openArgs...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("failed to launch editor bundle: %v: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	}

	cmd := exec.Command(path, args...)
	hideWindow(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch editor: %w", err)
	}
	return nil
}

// launchDefault starts the editor without a configured path, using each
// platform's conventional launch mechanism.
func launchDefault(goos string, args []string) error {
	switch goos {
	case "darwin":
		appName := strings.TrimSuffix(config.EditorAppBundle(), ".app")
		openArgs := []string{"-a", appName}
		if len(args) > 0 {
			openArgs = append(openArgs, "--args")
			openArgs = append(openArgs, args...)
		}
		out, err := exec.Command("open", openArgs...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("failed to launch editor: %v: %s", err, strings.TrimSpace(string(out)))
		}
		return nil
	case "windows":
		cmd := exec.Command("cmd", "/C", "start", "", config.EditorURLScheme())
		hideWindow(cmd)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("failed to launch editor via url scheme: %w", err)
		}
		return nil
	default:
		cmd := exec.Command(config.EditorCommandName(), args...)
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("failed to launch editor: %w", err)
		}
		return nil
	}
}
