// Package session loads a saved login into the browser and checks that it
// is still accepted by the site.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/go-rod/rod/lib/proto"

	"github.com/gautamk/summer-hiking-series/internal/browser"
	"github.com/gautamk/summer-hiking-series/internal/logger"
)

// Site defaults.
const (
	ProbeURL    = "https://www.wta.org/@@user-account"
	LoginMarker = "login"
)

// DefaultPath returns the bundle location under the XDG data directory.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, "trailcrawler", "wta.json")
}

// Attacher receives a session. *browser.Browser satisfies it.
type Attacher interface {
	SetCookies(cookies []*proto.NetworkCookieParam) error
	AddInitScript(js string)
}

// Handle describes the session attached to a browser.
type Handle struct {
	Authenticated bool
	Path          string
	Cookies       int
}

// Manager reads and writes the session bundle. The crawl engine only
// reads it; the login command writes it.
type Manager struct {
	path string
	log  *logger.Logger
}

// NewManager creates a manager for the bundle at path. An empty path uses
// DefaultPath.
func NewManager(path string, log *logger.Logger) *Manager {
	if path == "" {
		path = DefaultPath()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{path: path, log: log.WithComponent("session")}
}

// Path returns the bundle location.
func (m *Manager) Path() string {
	return m.path
}

// Load reads the bundle. A missing file yields an error wrapping
// os.ErrNotExist.
func (m *Manager) Load() (*State, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", m.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("malformed session %s: %w", m.path, err)
	}
	return &state, nil
}

// Save writes the bundle readable by the owner only, replacing any
// previous one atomically.
func (m *Manager) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Attach installs the saved session into target. Without a saved session
// the crawl proceeds unauthenticated, with a warning.
func (m *Manager) Attach(ctx context.Context, target Attacher) (*Handle, error) {
	handle := &Handle{Path: m.path}

	state, err := m.Load()
	if errors.Is(err, os.ErrNotExist) {
		m.log.WithField("path", m.path).Warn("no saved session, crawling unauthenticated; run trailcrawler login first")
		return handle, nil
	}
	if err != nil {
		return nil, err
	}

	if err := target.SetCookies(state.CookieParams()); err != nil {
		return nil, fmt.Errorf("failed to install session cookies: %w", err)
	}

	script, err := state.InitScript()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage script: %w", err)
	}
	if script != "" {
		target.AddInitScript(script)
	}

	handle.Authenticated = true
	handle.Cookies = len(state.Cookies)
	m.log.WithField("path", m.path).Infof("loaded session with %d cookies", handle.Cookies)
	return handle, nil
}

// Probe loads probeURL and reports whether the session is still valid,
// which is false when the site redirected to a URL containing loginMarker.
// It also returns where the tab landed.
func Probe(ctx context.Context, tab browser.Tab, probeURL, loginMarker string) (bool, string, error) {
	if err := tab.Navigate(ctx, probeURL); err != nil {
		return false, "", fmt.Errorf("session probe failed: %w", err)
	}

	landed, err := tab.URL(ctx)
	if err != nil {
		return false, "", fmt.Errorf("session probe failed: %w", err)
	}

	return !strings.Contains(landed, loginMarker), landed, nil
}
