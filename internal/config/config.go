// Package config provides configuration management for padbridge.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"padbridge/internal/gating"
)

// Config represents the application configuration
type Config struct {
	// Settings holds the persisted user toggles by key
	Settings map[string]bool `json:"settings"`

	// Gating selects the applications the bridge may affect
	Gating GatingConfig `json:"gating"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// GatingConfig describes which applications are targeted
type GatingConfig struct {
	// Policy is "exact" (only TargetTitle) or "system" (any system title
	// except ExcludedTitles)
	Policy string `json:"policy"`

	// TargetTitle is the hex title id used by the exact policy
	TargetTitle string `json:"target_title"`

	// ExcludedTitles are hex title ids the system policy never matches
	ExcludedTitles []string `json:"excluded_titles,omitempty"`

	// Titles maps an executable name to the title id it reports
	Titles map[string]string `json:"titles,omitempty"`

	// VetoPanel is the panel that cannot be opened without a primary controller
	VetoPanel string `json:"veto_panel,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// APIEnabled enables the HTTP/WebSocket configuration server
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the API server
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`

	// UDPLog mirrors log output as UDP broadcast
	UDPLog bool `json:"udp_log"`

	// AuxSource selects the auxiliary controller: "sdl", "udp" or "none"
	AuxSource string `json:"aux_source"`

	// AuxUDPPort is the listen port of the UDP auxiliary source
	AuxUDPPort int `json:"aux_udp_port"`

	// PollIntervalMs is the interval of the foreground application check
	PollIntervalMs int `json:"poll_interval_ms"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Settings: make(map[string]bool),
		Gating: GatingConfig{
			Policy:         gating.PolicyExact,
			TargetTitle:    "0005001010047100",
			ExcludedTitles: []string{"0005001010040100"},
			Titles:         make(map[string]string),
			VetoPanel:      "controller-sync",
		},
		General: GeneralConfig{
			APIEnabled:     true,
			APIPort:        18090,
			UDPLog:         false,
			AuxSource:      "sdl",
			AuxUDPPort:     18091,
			PollIntervalMs: 1000,
		},
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager. An empty path selects the
// per-user default location.
func NewManager(path string) (*Manager, error) {
	if path == "" {
		var err error
		path, err = getConfigPath()
		if err != nil {
			return nil, err
		}
	}

	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "padbridge")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "padbridge")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "padbridge")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Path returns the configuration file location
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	if cfg.Settings == nil {
		cfg.Settings = make(map[string]bool)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Clone returns a deep copy of the current configuration
func (m *Manager) Clone() (*Config, error) {
	m.mu.Lock()
	data, err := json.Marshal(m.config)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Settings == nil {
		cfg.Settings = make(map[string]bool)
	}
	if cfg.Gating.Titles == nil {
		cfg.Gating.Titles = make(map[string]string)
	}
	return cfg, nil
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	if m.config.Settings == nil {
		m.config.Settings = make(map[string]bool)
	}
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// LoadBool returns a persisted toggle, or ErrNotFound if it was never stored
func (m *Manager) LoadBool(key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.config.Settings[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// StoreBool records a toggle in memory; Save persists it
func (m *Manager) StoreBool(key string, value bool) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Settings[key] = value
	return nil
}

// Predicate builds the gating predicate from the configured policy
func (m *Manager) Predicate() (gating.Predicate, error) {
	m.mu.Lock()
	g := m.config.Gating
	m.mu.Unlock()

	var target gating.ApplicationID
	if g.Policy == "" || g.Policy == gating.PolicyExact {
		id, err := gating.ParseApplicationID(g.TargetTitle)
		if err != nil {
			return nil, fmt.Errorf("target title: %w", err)
		}
		target = id
	}

	except := make([]gating.ApplicationID, 0, len(g.ExcludedTitles))
	for _, s := range g.ExcludedTitles {
		id, err := gating.ParseApplicationID(s)
		if err != nil {
			return nil, fmt.Errorf("excluded title: %w", err)
		}
		except = append(except, id)
	}

	return gating.NewPredicate(g.Policy, target, except)
}

// TitleFor returns the title id configured for an executable name
func (m *Manager) TitleFor(executable string) (gating.ApplicationID, bool) {
	m.mu.Lock()
	s, ok := m.config.Gating.Titles[executable]
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	id, err := gating.ParseApplicationID(s)
	if err != nil {
		log.Printf("Config: Ignoring title mapping for %s: %v", executable, err)
		return 0, false
	}
	return id, true
}
