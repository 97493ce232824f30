package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

type fakeOAuth struct {
	ensureErr    error
	rotated      bool
	fresh        models.TokenData
	refreshErr   error
	refreshed    models.TokenData
	refreshCalls int
	name         string
}

func (f *fakeOAuth) EnsureFreshToken(_ context.Context, token models.TokenData) (models.TokenData, bool, error) {
	if f.ensureErr != nil {
		return token, false, f.ensureErr
	}
	if f.rotated {
		return f.fresh, true, nil
	}
	return token, false, nil
}

func (f *fakeOAuth) RefreshAccessToken(_ context.Context, token models.TokenData) (models.TokenData, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return token, f.refreshErr
	}
	return f.refreshed, nil
}

func (f *fakeOAuth) FetchUserInfo(context.Context, string) (string, error) {
	return f.name, nil
}

// fakeAPI pops one scripted response per Fetch call.
type fakeAPI struct {
	mu      sync.Mutex
	results []FetchResult
	errs    []error
	calls   int
}

func (f *fakeAPI) Fetch(context.Context, string, string) (FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return FetchResult{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return FetchResult{}, fmt.Errorf("unexpected fetch call %d", i)
}

type countingRecorder struct {
	records int
	fail    bool
}

func (c *countingRecorder) RecordQuota(string, string, models.QuotaData) error {
	c.records++
	if c.fail {
		return fmt.Errorf("disk full")
	}
	return nil
}

func newTestEngine(t *testing.T, oauth *fakeOAuth, api *fakeAPI) (*Engine, *store.Store) {
	t.Helper()
	cfg := &config.Config{
		DataDir: t.TempDir(),
		QuotaProtection: config.QuotaProtection{
			Enabled:             true,
			ThresholdPercentage: 10,
			MonitoredModels:     []string{"gemini-3-pro-high"},
		},
		ModelMappings: config.DefaultModelMappings(),
	}
	s, err := store.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return NewEngine(s, oauth, api), s
}

func okResult(percentages ...int) FetchResult {
	q := models.NewQuotaData()
	for i, p := range percentages {
		q.Models = append(q.Models, models.ModelQuota{
			Name:       fmt.Sprintf("gemini-3-pro-high-v%d", i),
			Percentage: p,
		})
	}
	return FetchResult{Quota: q}
}

func TestFetchWithRetryHappyPath(t *testing.T) {
	oauth := &fakeOAuth{}
	api := &fakeAPI{results: []FetchResult{okResult(80)}}
	e, s := newTestEngine(t, oauth, api)
	rec := &countingRecorder{}
	e.SetHistoryRecorder(rec)

	acct, err := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "u@x", "", ""))
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.FetchWithRetry(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if got.Quota == nil || len(got.Quota.Models) != 1 || got.Quota.Models[0].Percentage != 80 {
		t.Errorf("quota = %+v", got.Quota)
	}
	if rec.records != 1 {
		t.Errorf("history records = %d, want 1", rec.records)
	}
}

func TestFetchWithRetryInvalidGrantDisables(t *testing.T) {
	oauth := &fakeOAuth{ensureErr: fmt.Errorf("token refresh failed (status 400): {\"error\":\"invalid_grant\"}")}
	e, s := newTestEngine(t, oauth, &fakeAPI{})

	acct, _ := s.Add("u@x", "", models.NewTokenData("", "rt", 0, "u@x", "", ""))
	_, err := e.FetchWithRetry(context.Background(), acct.ID)
	if !errors.Is(err, ErrInvalidGrant) {
		t.Fatalf("error = %v, want ErrInvalidGrant", err)
	}

	got, _ := s.Get(acct.ID)
	if !got.Disabled || got.DisabledReason == "" || got.DisabledAt == nil {
		t.Errorf("account not hard-disabled: %+v", got)
	}
}

func TestFetchWithRetry401ForcesOneRetry(t *testing.T) {
	oauth := &fakeOAuth{refreshed: models.NewTokenData("at2", "rt2", 3600, "u@x", "", "")}
	api := &fakeAPI{
		errs:    []error{&StatusError{Code: 401, Body: "expired"}},
		results: []FetchResult{{}, okResult(55)},
	}
	e, s := newTestEngine(t, oauth, api)

	acct, _ := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "u@x", "", ""))
	got, err := e.FetchWithRetry(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if oauth.refreshCalls != 1 {
		t.Errorf("forced refreshes = %d, want 1", oauth.refreshCalls)
	}
	if api.calls != 2 {
		t.Errorf("fetch calls = %d, want 2 (one retry)", api.calls)
	}
	if got.Token.RefreshToken != "rt2" {
		t.Errorf("rotated token not persisted: %+v", got.Token)
	}
	if got.Quota == nil || got.Quota.Models[0].Percentage != 55 {
		t.Errorf("quota = %+v", got.Quota)
	}
}

func TestFetchWithRetry403AfterRetryMarksForbidden(t *testing.T) {
	oauth := &fakeOAuth{refreshed: models.NewTokenData("at2", "rt2", 3600, "u@x", "", "")}
	api := &fakeAPI{errs: []error{
		&StatusError{Code: 401, Body: "expired"},
		&StatusError{Code: 403, Body: "blocked"},
	}}
	e, s := newTestEngine(t, oauth, api)

	acct, _ := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "u@x", "", ""))
	got, err := e.FetchWithRetry(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("FetchWithRetry: %v", err)
	}
	if got.Quota == nil || !got.Quota.IsForbidden {
		t.Errorf("quota = %+v, want forbidden", got.Quota)
	}
	if len(got.Quota.Models) != 0 {
		t.Errorf("forbidden quota should be empty, got %+v", got.Quota.Models)
	}
	if !got.ProxyDisabled {
		t.Error("forbidden account not proxy-disabled")
	}
}

func TestFetchWithRetryPersistsProjectID(t *testing.T) {
	oauth := &fakeOAuth{}
	result := okResult(90)
	result.ProjectID = "projects/abc"
	api := &fakeAPI{results: []FetchResult{result}}
	e, s := newTestEngine(t, oauth, api)

	acct, _ := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "u@x", "", ""))
	got, err := e.FetchWithRetry(context.Background(), acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token.ProjectID != "projects/abc" {
		t.Errorf("project id = %q, want projects/abc", got.Token.ProjectID)
	}
}

func TestFetchWithRetryHistoryFailureIsNotFatal(t *testing.T) {
	oauth := &fakeOAuth{}
	api := &fakeAPI{results: []FetchResult{okResult(70)}}
	e, s := newTestEngine(t, oauth, api)
	e.SetHistoryRecorder(&countingRecorder{fail: true})

	acct, _ := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "u@x", "", ""))
	if _, err := e.FetchWithRetry(context.Background(), acct.ID); err != nil {
		t.Fatalf("refresh failed because of history recorder: %v", err)
	}
}

func TestRefreshAllSkipsOnlyForbidden(t *testing.T) {
	oauth := &fakeOAuth{}
	api := &fakeAPI{results: []FetchResult{okResult(60), okResult(60), okResult(60)}}
	e, s := newTestEngine(t, oauth, api)

	ok1, _ := s.Add("ok1@x", "", models.NewTokenData("at", "rt1", 3600, "", "", ""))
	disabled, _ := s.Add("disabled@x", "", models.NewTokenData("at", "rt2", 3600, "", "", ""))
	if _, err := s.Disable(disabled.ID, "invalid_grant"); err != nil {
		t.Fatal(err)
	}
	forbidden, _ := s.Add("forbidden@x", "", models.NewTokenData("at", "rt3", 3600, "", "", ""))
	if _, err := s.MarkForbidden(forbidden.ID, "blocked"); err != nil {
		t.Fatal(err)
	}
	_ = ok1

	stats, err := e.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if stats.Total != 3 || stats.Skipped != 1 || stats.Success != 2 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRefreshAllCollectsFailures(t *testing.T) {
	oauth := &fakeOAuth{}
	api := &fakeAPI{errs: []error{fmt.Errorf("upstream down")}}
	e, s := newTestEngine(t, oauth, api)

	if _, err := s.Add("u@x", "", models.NewTokenData("at", "rt", 3600, "", "", "")); err != nil {
		t.Fatal(err)
	}

	stats, err := e.RefreshAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Failed != 1 || len(stats.Details) != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
