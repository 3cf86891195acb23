// Package api provides the HTTP API and the WebSocket settings session.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"padbridge/internal/bridge"
	"padbridge/internal/config"
	"padbridge/internal/network"
	"padbridge/internal/protocol"
	"padbridge/internal/switcher"
)

// Server provides HTTP API for remote control
type Server struct {
	configMgr *config.Manager
	bridge    *bridge.Bridge
	switcher  *switcher.Switcher
	token     string
	wsMgr     *WSManager
}

// NewServer creates a new API server and starts its WebSocket hub, so status
// broadcasts are served even if the listener never comes up. sw may be nil
// when panel switching is not available.
func NewServer(configMgr *config.Manager, br *bridge.Bridge, sw *switcher.Switcher) *Server {
	s := &Server{
		configMgr: configMgr,
		bridge:    br,
		switcher:  sw,
		token:     configMgr.Get().General.APIToken,
	}
	s.wsMgr = newWSManager(s)
	go s.wsMgr.start()
	return s
}

// Handler returns the API routes wrapped in the auth and recover middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/switch", s.handleSwitch)
	mux.HandleFunc("/api/discover", s.handleDiscover)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start starts the API server on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("0.0.0.0:%d", port)

	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			log.Printf("API: Found local IPv4 %s", ip)
		}
	}

	log.Printf("API: Starting server on %s", addr)

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{
		Handler: s.Handler(),
	}

	// This is blocking
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Close stops the WebSocket hub. Later broadcasts are dropped.
func (s *Server) Close() {
	s.wsMgr.stop()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks API token if configured. Browsers cannot set headers
// on WebSocket requests, so the token is also accepted as a query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader != "Bearer "+s.token && r.URL.Query().Get("token") != s.token {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// status collects the current state of the bridge
func (s *Server) status() protocol.StatusPayload {
	g := s.bridge.Gate()
	caps := g.Capabilities()
	mirror, redirect := g.Settings()

	st := protocol.StatusPayload{
		UIOpen:          g.UIOpen(),
		MirrorSetting:   mirror,
		RedirectSetting: redirect,
		Mirror:          caps.Mirror,
		Redirect:        caps.Redirect,
		PrimaryAbsent:   s.bridge.PrimaryAbsent(),
	}
	if id, ok := g.Application(); ok {
		st.Application = id.String()
	}
	if s.switcher != nil {
		st.Panel = string(s.switcher.GetCurrentPanel())
	}
	return st
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status())
}

// handleConfig handles GET (read) and POST (update) for configuration.
// A POST body is merged over the current configuration. The bridge toggles
// are applied through the bridge so the gate and the store stay in step.
// Gating policy changes take effect on the next start.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		cfg := s.configMgr.Get()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)

	case "POST":
		newCfg, err := s.configMgr.Clone()
		if err != nil {
			log.Printf("API: Failed to copy config: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		current := make(map[string]bool, len(newCfg.Settings))
		for k, v := range newCfg.Settings {
			current[k] = v
		}

		if err := json.NewDecoder(r.Body).Decode(newCfg); err != nil {
			http.Error(w, "Invalid configuration data", http.StatusBadRequest)
			return
		}

		log.Printf("API: Receiving configuration update from %s", r.RemoteAddr)

		// Toggles go through the bridge, not a raw store write
		if newCfg.Settings == nil {
			newCfg.Settings = make(map[string]bool)
		}
		changed := make(map[string]bool)
		for _, key := range []string{bridge.MirrorScreensKey, bridge.InputRedirectionKey} {
			v, ok := newCfg.Settings[key]
			if old, had := current[key]; had {
				newCfg.Settings[key] = old
			} else {
				delete(newCfg.Settings, key)
			}
			if ok {
				changed[key] = v
			}
		}

		s.configMgr.Set(newCfg)
		for key, v := range changed {
			s.bridge.ValueChanged(key, v)
		}
		if err := s.configMgr.Save(); err != nil {
			log.Printf("API: Failed to save received config: %v", err)
			http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSwitch handles POST /api/switch?panel=<id>
func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.switcher == nil {
		http.Error(w, "Panel switching not available", http.StatusNotImplemented)
		return
	}

	panel := r.URL.Query().Get("panel")
	if panel == "" {
		http.Error(w, "Missing panel parameter", http.StatusBadRequest)
		return
	}

	log.Printf("API: Switching to panel '%s' (remote request from %s)", panel, r.RemoteAddr)

	if err := s.switcher.SwitchToPanel(switcher.PanelID(panel)); err != nil {
		log.Printf("API: Switch error: %v", err)
		code := http.StatusInternalServerError
		if errors.Is(err, switcher.ErrVetoed) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"panel":  panel,
	})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleDiscover handles GET /api/discover - scans LAN for other bridges
func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := s.configMgr.Get()
	log.Printf("API: Starting LAN scan on port %d", cfg.General.APIPort)

	hosts, err := network.ScanLAN(r.Context(), cfg.General.APIPort)
	if err != nil {
		log.Printf("API: Scan error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("API: Found %d bridge(s) on LAN", len(hosts))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hosts)
}

// BroadcastStatus sends the current state to the settings session, if any
func (s *Server) BroadcastStatus() {
	s.wsMgr.broadcastStatus(s.status())
}
