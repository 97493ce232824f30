package store

import (
	"testing"

	"github.com/j-veylop/antigravity-account-manager/internal/models"
)

func quotaWith(models2 ...models.ModelQuota) models.QuotaData {
	q := models.NewQuotaData()
	q.Models = models2
	return q
}

func TestUpdateQuotaProtectsOnMinBelowThreshold(t *testing.T) {
	s := newTestStore(t) // threshold 10, monitors gemini-3-pro-high
	acct, _ := s.Add("u@x", "", testToken("rt"))

	// Two upstream variants collapse to gemini-3-pro-high; the min (8) decides.
	got, err := s.UpdateQuota(acct.ID, quotaWith(
		models.ModelQuota{Name: "gemini-3-pro-high-v1", Percentage: 8},
		models.ModelQuota{Name: "gemini-3-pro-preview-0801", Percentage: 50},
	))
	if err != nil {
		t.Fatalf("UpdateQuota: %v", err)
	}
	if !got.ProtectedModels.Has("gemini-3-pro-high") {
		t.Fatalf("protected = %v, want gemini-3-pro-high", got.ProtectedModels.Items())
	}

	// Index mirror is patched too.
	sums, _ := s.ListSummaries()
	if !sums[0].ProtectedModels.Has("gemini-3-pro-high") {
		t.Error("summary mirror missing protected model")
	}

	// Recovery above threshold lifts the protection.
	got, err = s.UpdateQuota(acct.ID, quotaWith(
		models.ModelQuota{Name: "gemini-3-pro-high-v1", Percentage: 20},
		models.ModelQuota{Name: "gemini-3-pro-preview-0801", Percentage: 20},
	))
	if err != nil {
		t.Fatal(err)
	}
	if got.ProtectedModels.Has("gemini-3-pro-high") {
		t.Errorf("protection not lifted: %v", got.ProtectedModels.Items())
	}
}

func TestUpdateQuotaIgnoresUnmonitoredModels(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.Add("u@x", "", testToken("rt"))

	got, err := s.UpdateQuota(acct.ID, quotaWith(
		models.ModelQuota{Name: "claude-sonnet-4-5", Percentage: 1},
	))
	if err != nil {
		t.Fatal(err)
	}
	if got.ProtectedModels.Has("claude-sonnet-4-5") {
		t.Error("unmonitored model was protected")
	}
}

func TestUpdateQuotaMigratesLegacyAccountLevelProtection(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.Add("u@x", "", testToken("rt"))
	if _, err := s.ToggleProxyStatus(acct.ID, true, legacyProtectionReason); err != nil {
		t.Fatal(err)
	}

	got, err := s.UpdateQuota(acct.ID, quotaWith(
		models.ModelQuota{Name: "gemini-3-pro-high", Percentage: 90},
	))
	if err != nil {
		t.Fatal(err)
	}
	if got.ProxyDisabled || got.ProxyDisabledReason != "" || got.ProxyDisabledAt != nil {
		t.Errorf("legacy account-level protection not cleared: %+v", got)
	}
}

func TestUpdateQuotaKeepsUnrelatedProxyDisable(t *testing.T) {
	s := newTestStore(t)
	acct, _ := s.Add("u@x", "", testToken("rt"))
	if _, err := s.ToggleProxyStatus(acct.ID, true, "manual"); err != nil {
		t.Fatal(err)
	}

	got, err := s.UpdateQuota(acct.ID, quotaWith(
		models.ModelQuota{Name: "gemini-3-pro-high", Percentage: 90},
	))
	if err != nil {
		t.Fatal(err)
	}
	if !got.ProxyDisabled || got.ProxyDisabledReason != "manual" {
		t.Errorf("manual proxy disable was cleared: %+v", got)
	}
}

func TestNormalizeModelNamePrefersLongestKey(t *testing.T) {
	mappings := map[string]string{
		"claude-sonnet":     "claude-sonnet-4-5",
		"claude-sonnet-4-5": "claude-sonnet-4-5",
		"gemini-3-pro-high": "gemini-3-pro-high",
	}
	cases := []struct {
		name string
		want string
		ok   bool
	}{
		{"Claude-Sonnet-4-5-20250929", "claude-sonnet-4-5", true},
		{"claude-sonnet", "claude-sonnet-4-5", true},
		{"GEMINI-3-PRO-HIGH", "gemini-3-pro-high", true},
		{"unknown-model", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeModelName(tc.name, mappings)
		if got != tc.want || ok != tc.ok {
			t.Errorf("normalizeModelName(%q) = %q/%v, want %q/%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
