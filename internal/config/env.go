package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
)

// Env holds the environment overrides
type Env struct {
	ConfigPath string `env:"PADBRIDGE_CONFIG"`
	APIPort    int    `env:"PADBRIDGE_API_PORT"`
	APIToken   string `env:"PADBRIDGE_API_TOKEN"`
	UDPLog     *bool  `env:"PADBRIDGE_UDP_LOG"`
	AuxSource  string `env:"PADBRIDGE_AUX_SOURCE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ApplyEnv overrides loaded values with the ones set in the environment
func (m *Manager) ApplyEnv(e Env) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := &m.config.General
	if e.APIPort != 0 {
		log.Printf("Config: API port overridden to %d", e.APIPort)
		g.APIPort = e.APIPort
	}
	if e.APIToken != "" {
		g.APIToken = e.APIToken
	}
	if e.UDPLog != nil {
		g.UDPLog = *e.UDPLog
	}
	if e.AuxSource != "" {
		log.Printf("Config: Aux source overridden to %s", e.AuxSource)
		g.AuxSource = e.AuxSource
	}
}
