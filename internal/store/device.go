package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-account-manager/internal/logger"
	"github.com/j-veylop/antigravity-account-manager/internal/models"
)

// Bind modes accepted by BindDeviceProfile.
const (
	BindModeCapture  = "capture"
	BindModeGenerate = "generate"
)

// BaselineVersionID is the reserved history id for the machine's original
// identity, recorded before any generated profile was applied. It can be
// restored but never deleted.
const BaselineVersionID = "baseline"

// DeviceProvider supplies device profiles: Capture reads the machine's
// current identity from the editor's own files, Generate fabricates a new
// one. Implemented by the platform integration collaborator.
type DeviceProvider interface {
	Capture() (models.DeviceProfile, error)
	Generate() (models.DeviceProfile, error)
}

// ProfileApplier writes a device profile into the editor's identity file.
type ProfileApplier interface {
	ApplyProfile(models.DeviceProfile) error
}

// applyProfileToAccount binds profile as the account's active device profile
// and appends a history version. Exactly one history entry is current after
// the call.
func applyProfileToAccount(acct *models.Account, profile models.DeviceProfile, label string) {
	for i := range acct.DeviceHistory {
		acct.DeviceHistory[i].IsCurrent = false
	}
	acct.DeviceHistory = append(acct.DeviceHistory, models.DeviceProfileVersion{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().Unix(),
		Label:     label,
		Profile:   profile,
		IsCurrent: true,
	})
	p := profile
	acct.DeviceProfile = &p
}

// ensureBaseline records the machine's pre-modification identity once per
// account. A capture failure is logged, not fatal: the baseline is a
// convenience for undo, not a requirement for binding.
func ensureBaseline(acct *models.Account, baseline models.DeviceProfile) {
	for _, v := range acct.DeviceHistory {
		if v.ID == BaselineVersionID {
			return
		}
	}
	acct.DeviceHistory = append(acct.DeviceHistory, models.DeviceProfileVersion{
		ID:        BaselineVersionID,
		CreatedAt: time.Now().Unix(),
		Label:     BaselineVersionID,
		Profile:   baseline,
	})
}

// BindDeviceProfile binds a device profile to the account. Mode "capture"
// adopts the machine's current identity; "generate" fabricates a new one,
// first preserving the current identity as the baseline version.
func (s *Store) BindDeviceProfile(id, mode string, provider DeviceProvider) (*models.Account, error) {
	var (
		profile models.DeviceProfile
		label   string
		err     error
	)
	switch mode {
	case BindModeCapture:
		profile, err = provider.Capture()
		label = "captured"
	case BindModeGenerate:
		profile, err = provider.Generate()
		label = "generated"
	default:
		return nil, fmt.Errorf("%w: bind mode %q", ErrBadArgument, mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed_to_obtain_device_profile: %w", err)
	}

	return s.Mutate(id, func(acct *models.Account) error {
		switch mode {
		case BindModeCapture:
			ensureBaseline(acct, profile)
		case BindModeGenerate:
			if base, err := provider.Capture(); err == nil {
				ensureBaseline(acct, base)
			} else {
				logger.Warn("could not capture baseline device profile", "id", id, "error", err)
			}
		}
		applyProfileToAccount(acct, profile, label)
		return nil
	})
}

// BindDeviceProfileWithProfile binds an externally supplied profile. A nil
// label stores the literal "generated".
func (s *Store) BindDeviceProfileWithProfile(id string, profile models.DeviceProfile, label *string) (*models.Account, error) {
	bound := "generated"
	if label != nil {
		bound = *label
	}
	return s.Mutate(id, func(acct *models.Account) error {
		applyProfileToAccount(acct, profile, bound)
		return nil
	})
}

// ApplyDeviceProfile writes the account's active profile into the editor's
// identity file through the platform collaborator.
func (s *Store) ApplyDeviceProfile(id string, applier ProfileApplier) error {
	acct, err := s.Get(id)
	if err != nil {
		return err
	}
	if acct.DeviceProfile == nil {
		return fmt.Errorf("%w: account %s has no device profile", ErrBadArgument, id)
	}
	return applier.ApplyProfile(*acct.DeviceProfile)
}

// RestoreDeviceVersion re-activates a history version. versionID may be a
// history id, "baseline", or "current" (a no-op re-activation of the bound
// profile).
func (s *Store) RestoreDeviceVersion(id, versionID string) (*models.Account, error) {
	return s.Mutate(id, func(acct *models.Account) error {
		if versionID == "current" {
			if acct.DeviceProfile == nil {
				return fmt.Errorf("%w: account %s has no device profile", ErrBadArgument, id)
			}
			return nil
		}
		for i := range acct.DeviceHistory {
			if acct.DeviceHistory[i].ID != versionID {
				continue
			}
			for j := range acct.DeviceHistory {
				acct.DeviceHistory[j].IsCurrent = false
			}
			acct.DeviceHistory[i].IsCurrent = true
			p := acct.DeviceHistory[i].Profile
			acct.DeviceProfile = &p
			return nil
		}
		return fmt.Errorf("%w: device version %s", ErrNotFound, versionID)
	})
}

// DeleteDeviceVersion removes a history version. The baseline and the
// currently active version are refused.
func (s *Store) DeleteDeviceVersion(id, versionID string) error {
	if versionID == BaselineVersionID {
		return fmt.Errorf("%w: the baseline version cannot be deleted", ErrBadArgument)
	}

	_, err := s.Mutate(id, func(acct *models.Account) error {
		for i := range acct.DeviceHistory {
			if acct.DeviceHistory[i].ID != versionID {
				continue
			}
			if acct.DeviceHistory[i].IsCurrent {
				return fmt.Errorf("%w: the active version cannot be deleted", ErrBadArgument)
			}
			acct.DeviceHistory = append(acct.DeviceHistory[:i], acct.DeviceHistory[i+1:]...)
			return nil
		}
		return fmt.Errorf("%w: device version %s", ErrNotFound, versionID)
	})
	return err
}

// ListDeviceVersions returns the account's device profile history.
func (s *Store) ListDeviceVersions(id string) ([]models.DeviceProfileVersion, error) {
	acct, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return acct.DeviceHistory, nil
}
