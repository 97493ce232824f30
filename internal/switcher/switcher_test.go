package switcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/j-veylop/antigravity-account-manager/internal/config"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/quota"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

type fakeOAuth struct {
	fresh      models.TokenData
	rotated    bool
	ensureErr  error
	refreshErr error
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
	if f.refreshErr != nil {
		return token, f.refreshErr
	}
	return f.fresh, nil
}

func (f *fakeOAuth) FetchUserInfo(context.Context, string) (string, error) {
	return "", nil
}

type fakeDevice struct {
	generated int
	genErr    error
}

func (f *fakeDevice) Capture() (models.DeviceProfile, error) {
	return models.DeviceProfile{MachineID: "captured"}, nil
}

func (f *fakeDevice) Generate() (models.DeviceProfile, error) {
	if f.genErr != nil {
		return models.DeviceProfile{}, f.genErr
	}
	f.generated++
	return models.DeviceProfile{MachineID: fmt.Sprintf("gen-%d", f.generated)}, nil
}

type fakeIntegration struct {
	calls []string
	err   error
}

func (f *fakeIntegration) OnAccountSwitch(_ context.Context, acct *models.Account) error {
	f.calls = append(f.calls, acct.Email)
	return f.err
}

func newTestSwitcher(t *testing.T, oauth *fakeOAuth, device *fakeDevice, integ *fakeIntegration) (*Switcher, *store.Store) {
	t.Helper()
	cfg := &config.Config{
		DataDir:       t.TempDir(),
		ModelMappings: config.DefaultModelMappings(),
	}
	s, err := store.New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return New(s, oauth, device, integ), s
}

func addAccount(t *testing.T, s *store.Store, email string) *models.Account {
	t.Helper()
	acct, err := s.Add(email, "", models.NewTokenData("at", "rt-"+email, 3600, email, "", ""))
	if err != nil {
		t.Fatalf("Add(%s): %v", email, err)
	}
	return acct
}

func TestSwitchMakesAccountCurrent(t *testing.T) {
	integ := &fakeIntegration{}
	sw, s := newTestSwitcher(t, &fakeOAuth{}, &fakeDevice{}, integ)
	addAccount(t, s, "a@example.com")
	b := addAccount(t, s, "b@example.com")

	acct, err := sw.Switch(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if acct.LastUsed == 0 {
		t.Error("last_used not bumped")
	}
	cur, err := s.CurrentID()
	if err != nil {
		t.Fatal(err)
	}
	if cur != b.ID {
		t.Errorf("current = %q, want %q", cur, b.ID)
	}
	if len(integ.calls) != 1 || integ.calls[0] != "b@example.com" {
		t.Errorf("integration calls = %v", integ.calls)
	}
}

func TestSwitchBindsGeneratedProfile(t *testing.T) {
	device := &fakeDevice{}
	sw, s := newTestSwitcher(t, &fakeOAuth{}, device, &fakeIntegration{})
	acct := addAccount(t, s, "a@example.com")

	got, err := sw.Switch(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got.DeviceProfile == nil {
		t.Fatal("no device profile bound")
	}
	if device.generated != 1 {
		t.Errorf("generated %d profiles, want 1", device.generated)
	}
	found := false
	for _, v := range got.DeviceHistory {
		if v.Label == autoGeneratedLabel && v.IsCurrent {
			found = true
		}
	}
	if !found {
		t.Errorf("no current auto_generated history entry: %+v", got.DeviceHistory)
	}
}

func TestSwitchKeepsExistingProfile(t *testing.T) {
	device := &fakeDevice{}
	sw, s := newTestSwitcher(t, &fakeOAuth{}, device, &fakeIntegration{})
	acct := addAccount(t, s, "a@example.com")
	if _, err := s.BindDeviceProfileWithProfile(acct.ID, models.DeviceProfile{MachineID: "mine"}, nil); err != nil {
		t.Fatal(err)
	}

	got, err := sw.Switch(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if device.generated != 0 {
		t.Errorf("generated %d profiles for a bound account", device.generated)
	}
	if got.DeviceProfile.MachineID != "mine" {
		t.Errorf("profile replaced: %+v", got.DeviceProfile)
	}
}

func TestSwitchProceedsWhenGenerationFails(t *testing.T) {
	device := &fakeDevice{genErr: errors.New("no entropy")}
	sw, s := newTestSwitcher(t, &fakeOAuth{}, device, &fakeIntegration{})
	acct := addAccount(t, s, "a@example.com")

	got, err := sw.Switch(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got.DeviceProfile != nil {
		t.Errorf("unexpected profile: %+v", got.DeviceProfile)
	}
	cur, _ := s.CurrentID()
	if cur != acct.ID {
		t.Errorf("current = %q, want %q", cur, acct.ID)
	}
}

func TestSwitchInvalidGrantDisables(t *testing.T) {
	oauth := &fakeOAuth{ensureErr: errors.New(`oauth error: {"error":"invalid_grant"}`)}
	sw, s := newTestSwitcher(t, oauth, &fakeDevice{}, &fakeIntegration{})
	addAccount(t, s, "a@example.com")
	b := addAccount(t, s, "b@example.com")

	_, err := sw.Switch(context.Background(), b.ID)
	if !errors.Is(err, quota.ErrInvalidGrant) {
		t.Fatalf("err = %v, want ErrInvalidGrant", err)
	}
	got, gerr := s.Get(b.ID)
	if gerr != nil {
		t.Fatal(gerr)
	}
	if !got.Disabled {
		t.Error("account not disabled")
	}
	cur, _ := s.CurrentID()
	if cur == b.ID {
		t.Error("dead account became current")
	}
}

func TestSwitchPersistsRotatedToken(t *testing.T) {
	rotated := models.NewTokenData("at2", "rt2", 3600, "a@example.com", "", "")
	oauth := &fakeOAuth{fresh: rotated, rotated: true}
	sw, s := newTestSwitcher(t, oauth, &fakeDevice{}, &fakeIntegration{})
	acct := addAccount(t, s, "a@example.com")

	if _, err := sw.Switch(context.Background(), acct.ID); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	got, err := s.Get(acct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Token.RefreshToken != "rt2" {
		t.Errorf("refresh token = %q, want rt2", got.Token.RefreshToken)
	}
}

func TestSwitchAbortsWhenIntegrationFails(t *testing.T) {
	integ := &fakeIntegration{err: errors.New("editor storage locked")}
	sw, s := newTestSwitcher(t, &fakeOAuth{}, &fakeDevice{}, integ)
	a := addAccount(t, s, "a@example.com")
	b := addAccount(t, s, "b@example.com")

	if _, err := sw.Switch(context.Background(), b.ID); err == nil {
		t.Fatal("expected error")
	}
	cur, _ := s.CurrentID()
	if cur != a.ID {
		t.Errorf("current = %q, want the previous account %q", cur, a.ID)
	}
}

func TestSwitchUnknownAccount(t *testing.T) {
	sw, _ := newTestSwitcher(t, &fakeOAuth{}, &fakeDevice{}, &fakeIntegration{})
	if _, err := sw.Switch(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
