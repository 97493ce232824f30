// Package config contains everything related to configuration
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default values
const (
	defaultDataDirName        = ".antigravity_tools"
	defaultCloseTimeout       = 30 * time.Second
	defaultProtectionEnabled  = false
	defaultThresholdPercent   = 10
	dataDirEnvVar             = "ABV_DATA_DIR"
	defaultHistoryDBName      = "history.db"
	defaultEditorCommandName  = "antigravity"
	defaultEditorAppBundle    = "Antigravity.app"
	defaultEditorExeName      = "antigravity.exe"
	defaultEditorURLScheme    = "antigravity://"
	defaultEditorProcessToken = "antigravity"
)

// QuotaProtection controls the per-model protection state machine.
type QuotaProtection struct {
	Enabled             bool
	ThresholdPercentage int
	MonitoredModels     []string
}

// Config holds the application configuration.
type Config struct {
	DataDir            string
	HistoryDBPath      string
	GoogleClientID     string
	GoogleClientSecret string
	EditorExecutable   string
	EditorArgs         []string
	EditorCloseTimeout time.Duration
	QuotaProtection    QuotaProtection
	// ModelMappings maps a lowercase substring of an upstream model name to
	// its standardized model id. Many upstream variants collapse to one id.
	ModelMappings map[string]string
}

// DefaultModelMappings returns the built-in upstream-name to standardized-id table.
func DefaultModelMappings() map[string]string {
	return map[string]string{
		"gemini-3-pro-image":   "gemini-3-pro-image",
		"gemini-3-pro-high":    "gemini-3-pro-high",
		"gemini-3-pro-preview": "gemini-3-pro-high",
		"claude-sonnet-4-5":    "claude-sonnet-4-5",
		"claude-sonnet":        "claude-sonnet-4-5",
	}
}

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DataDir:            ResolveDataDir(),
		GoogleClientID:     getEnvString("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnvString("GOOGLE_CLIENT_SECRET", ""),
		EditorExecutable:   getEnvString("AGM_EDITOR_PATH", ""),
		EditorArgs:         getEnvList("AGM_EDITOR_ARGS"),
		EditorCloseTimeout: getEnvDuration("AGM_CLOSE_TIMEOUT", defaultCloseTimeout),
		QuotaProtection: QuotaProtection{
			Enabled:             getEnvBool("AGM_QUOTA_PROTECTION", defaultProtectionEnabled),
			ThresholdPercentage: getEnvInt("AGM_QUOTA_THRESHOLD", defaultThresholdPercent),
			MonitoredModels:     getEnvList("AGM_MONITORED_MODELS"),
		},
		ModelMappings: DefaultModelMappings(),
	}
	cfg.HistoryDBPath = getEnvString("AGM_HISTORY_DB", filepath.Join(cfg.DataDir, defaultHistoryDBName))

	if len(cfg.QuotaProtection.MonitoredModels) == 0 {
		cfg.QuotaProtection.MonitoredModels = []string{
			"gemini-3-pro-high",
			"gemini-3-pro-image",
			"claude-sonnet-4-5",
		}
	}

	if err := ensureDir(cfg.DataDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Dir(cfg.HistoryDBPath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolveDataDir returns the account data directory, honoring ABV_DATA_DIR.
// The override is trimmed; an empty or whitespace-only value is ignored.
func ResolveDataDir() string {
	if env := strings.TrimSpace(os.Getenv(dataDirEnvVar)); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// EditorCommandName is the default command used to launch the editor.
func EditorCommandName() string { return defaultEditorCommandName }

// EditorAppBundle is the macOS application bundle directory name.
func EditorAppBundle() string { return defaultEditorAppBundle }

// EditorExeName is the Windows executable filename.
func EditorExeName() string { return defaultEditorExeName }

// EditorURLScheme is the protocol handler registered by the editor.
func EditorURLScheme() string { return defaultEditorURLScheme }

// EditorProcessToken is the lowercase token expected in editor process names.
func EditorProcessToken() string { return defaultEditorProcessToken }

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, defaultDataDirName, ".env"),
			filepath.Join(home, ".config", "antigravity-account-manager", ".env"),
		)
	}

	return paths
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
