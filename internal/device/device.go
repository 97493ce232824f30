// Package device manages the editor's machine-identity file. It reads and
// writes the telemetry identifiers in storage.json and fabricates new ones
// for accounts that need a distinct fingerprint.
package device

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/j-veylop/antigravity-account-manager/internal/models"
	"github.com/j-veylop/antigravity-account-manager/internal/store"
)

// storage.json keys holding the identity values.
const (
	keyMachineID    = "telemetry.machineId"
	keyMacMachineID = "telemetry.macMachineId"
	keyDevDeviceID  = "telemetry.devDeviceId"
	keySqmID        = "telemetry.sqmId"
)

const storageFilePerm = 0o600

// UserDataDirFunc resolves the editor's user data directory. Splitting this
// out keeps the package testable without a running editor.
type UserDataDirFunc func() (string, bool)

// Manager implements both profile capture/generation and application to the
// editor's identity file.
type Manager struct {
	userDataDir UserDataDirFunc
}

// NewManager returns a manager that locates storage.json via userDataDir.
func NewManager(userDataDir UserDataDirFunc) *Manager {
	return &Manager{userDataDir: userDataDir}
}

// StoragePath returns the identity file location inside the user data dir.
func (m *Manager) StoragePath() (string, error) {
	dir, ok := m.userDataDir()
	if !ok {
		return "", fmt.Errorf("editor user data directory not found")
	}
	return filepath.Join(dir, "User", "globalStorage", "storage.json"), nil
}

// Capture reads the machine's current identity from storage.json.
func (m *Manager) Capture() (models.DeviceProfile, error) {
	path, err := m.StoragePath()
	if err != nil {
		return models.DeviceProfile{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.DeviceProfile{}, fmt.Errorf("failed to read identity file: %w", err)
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return models.DeviceProfile{}, fmt.Errorf("failed to parse identity file: %w", err)
	}
	return models.DeviceProfile{
		MachineID:    stringValue(values, keyMachineID),
		MacMachineID: stringValue(values, keyMacMachineID),
		DevDeviceID:  stringValue(values, keyDevDeviceID),
		SqmID:        stringValue(values, keySqmID),
	}, nil
}

// Generate fabricates a fresh identity in the formats the editor expects:
// 64 hex characters for the machine ids, a UUID for the device id, and an
// uppercase braced UUID for the sqm id.
func (m *Manager) Generate() (models.DeviceProfile, error) {
	machineID, err := randomHex(32)
	if err != nil {
		return models.DeviceProfile{}, err
	}
	macMachineID, err := randomHex(32)
	if err != nil {
		return models.DeviceProfile{}, err
	}
	return models.DeviceProfile{
		MachineID:    machineID,
		MacMachineID: macMachineID,
		DevDeviceID:  uuid.NewString(),
		SqmID:        "{" + strings.ToUpper(uuid.NewString()) + "}",
	}, nil
}

// ApplyProfile writes profile's identifiers into storage.json, preserving
// every other key the editor keeps there. A missing file is created.
func (m *Manager) ApplyProfile(profile models.DeviceProfile) error {
	path, err := m.StoragePath()
	if err != nil {
		return err
	}

	values := map[string]json.RawMessage{}
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &values); err != nil {
			return fmt.Errorf("failed to parse identity file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read identity file: %w", err)
	}

	setStringValue(values, keyMachineID, profile.MachineID)
	setStringValue(values, keyMacMachineID, profile.MacMachineID)
	setStringValue(values, keyDevDeviceID, profile.DevDeviceID)
	setStringValue(values, keySqmID, profile.SqmID)

	out, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create identity directory: %w", err)
	}
	return store.WriteFileAtomic(path, out, storageFilePerm)
}

func stringValue(values map[string]json.RawMessage, key string) string {
	raw, ok := values[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func setStringValue(values map[string]json.RawMessage, key, value string) {
	raw, _ := json.Marshal(value)
	values[key] = raw
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
