package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestResolveDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(dataDirEnvVar, dir)
	if got := ResolveDataDir(); got != dir {
		t.Errorf("ResolveDataDir = %q, want %q", got, dir)
	}
}

func TestResolveDataDirTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(dataDirEnvVar, "  "+dir+"\n")
	if got := ResolveDataDir(); got != dir {
		t.Errorf("ResolveDataDir = %q, want %q", got, dir)
	}
}

func TestResolveDataDirIgnoresBlankOverride(t *testing.T) {
	t.Setenv(dataDirEnvVar, "   ")
	got := ResolveDataDir()
	if filepath.Base(got) != defaultDataDirName {
		t.Errorf("ResolveDataDir = %q, want a %s path", got, defaultDataDirName)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(dataDirEnvVar, t.TempDir())
	t.Setenv("AGM_QUOTA_PROTECTION", "")
	t.Setenv("AGM_QUOTA_THRESHOLD", "")
	t.Setenv("AGM_MONITORED_MODELS", "")
	t.Setenv("AGM_CLOSE_TIMEOUT", "")
	t.Setenv("AGM_HISTORY_DB", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QuotaProtection.Enabled {
		t.Error("protection enabled by default")
	}
	if cfg.QuotaProtection.ThresholdPercentage != defaultThresholdPercent {
		t.Errorf("threshold = %d", cfg.QuotaProtection.ThresholdPercentage)
	}
	if len(cfg.QuotaProtection.MonitoredModels) == 0 {
		t.Error("no default monitored models")
	}
	if cfg.EditorCloseTimeout != defaultCloseTimeout {
		t.Errorf("close timeout = %v", cfg.EditorCloseTimeout)
	}
	if cfg.HistoryDBPath != filepath.Join(cfg.DataDir, defaultHistoryDBName) {
		t.Errorf("history db path = %q", cfg.HistoryDBPath)
	}
	if len(cfg.ModelMappings) == 0 {
		t.Error("no model mappings")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(dataDirEnvVar, t.TempDir())
	t.Setenv("AGM_QUOTA_PROTECTION", "true")
	t.Setenv("AGM_QUOTA_THRESHOLD", "25")
	t.Setenv("AGM_MONITORED_MODELS", "gemini-3-pro-high, claude-sonnet-4-5")
	t.Setenv("AGM_CLOSE_TIMEOUT", "45s")
	t.Setenv("AGM_EDITOR_PATH", "/custom/editor")
	t.Setenv("AGM_EDITOR_ARGS", "--no-sandbox,--user-data-dir=/tmp/x")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.QuotaProtection.Enabled {
		t.Error("protection not enabled")
	}
	if cfg.QuotaProtection.ThresholdPercentage != 25 {
		t.Errorf("threshold = %d", cfg.QuotaProtection.ThresholdPercentage)
	}
	want := []string{"gemini-3-pro-high", "claude-sonnet-4-5"}
	if len(cfg.QuotaProtection.MonitoredModels) != 2 ||
		cfg.QuotaProtection.MonitoredModels[0] != want[0] ||
		cfg.QuotaProtection.MonitoredModels[1] != want[1] {
		t.Errorf("monitored = %v, want %v", cfg.QuotaProtection.MonitoredModels, want)
	}
	if cfg.EditorCloseTimeout != 45*time.Second {
		t.Errorf("close timeout = %v", cfg.EditorCloseTimeout)
	}
	if cfg.EditorExecutable != "/custom/editor" {
		t.Errorf("editor path = %q", cfg.EditorExecutable)
	}
	if len(cfg.EditorArgs) != 2 || cfg.EditorArgs[1] != "--user-data-dir=/tmp/x" {
		t.Errorf("editor args = %v", cfg.EditorArgs)
	}
}

func TestGetEnvDurationBareSeconds(t *testing.T) {
	t.Setenv("AGM_TEST_DURATION", "12")
	if got := getEnvDuration("AGM_TEST_DURATION", time.Minute); got != 12*time.Second {
		t.Errorf("duration = %v, want 12s", got)
	}
}

func TestModelMappingsCollapseVariants(t *testing.T) {
	m := DefaultModelMappings()
	if m["gemini-3-pro-preview"] != "gemini-3-pro-high" {
		t.Errorf("preview maps to %q", m["gemini-3-pro-preview"])
	}
	if m["claude-sonnet"] != "claude-sonnet-4-5" {
		t.Errorf("claude-sonnet maps to %q", m["claude-sonnet"])
	}
}
