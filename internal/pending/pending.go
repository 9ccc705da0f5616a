// Package pending remembers, outside the session, that this client just
// registered an account whose email is not verified yet. The marker lets
// a visitor reach the verification prompt before having a session.
package pending

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the marker file inside the state directory.
const FileName = "pending-verification.yaml"

// DefaultTTL bounds how long a marker is honoured.
const DefaultTTL = 48 * time.Hour

// Marker is the persisted record.
type Marker struct {
	Email     string    `yaml:"email"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Manager reads and writes the marker file.
type Manager struct {
	path string
	ttl    time.Duration
	now    func() time.Time
	remove func(string) error
}

// NewManager returns a manager for the marker in stateDir.
func NewManager(stateDir string) *Manager {
	return &Manager{
		path:   filepath.Join(stateDir, FileName),
		ttl:    DefaultTTL,
		now:    time.Now,
		remove: os.Remove,
	}
}

// Path returns the marker file path.
func (m *Manager) Path() string {
	return m.path
}

// Set records email as awaiting verification.
func (m *Manager) Set(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("pending marker needs an email")
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	data, err := yaml.Marshal(Marker{Email: email, CreatedAt: m.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode pending marker: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write pending marker: %w", err)
	}
	return nil
}

// Get returns the marker. ok is false when there is none or it expired.
// Expired and unreadable markers are removed; a failed removal is
// returned as the error, still with ok false.
func (m *Manager) Get() (Marker, bool, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return Marker{}, false, nil
	}
	if err != nil {
		return Marker{}, false, fmt.Errorf("failed to read pending marker: %w", err)
	}

	var marker Marker
	if err := yaml.Unmarshal(data, &marker); err != nil || marker.Email == "" {
		// Unreadable markers are dropped rather than trusted.
		return Marker{}, false, m.Clear()
	}
	if m.ttl > 0 && m.now().Sub(marker.CreatedAt) > m.ttl {
		return Marker{}, false, m.Clear()
	}
	return marker, true, nil
}

// Active reports whether a usable marker exists. Read errors count as no
// marker, which only makes the guard stricter.
func (m *Manager) Active() bool {
	_, ok, err := m.Get()
	return ok && err == nil
}

// Clear removes the marker. A missing marker is not an error.
func (m *Manager) Clear() error {
	if err := m.remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pending marker: %w", err)
	}
	return nil
}
