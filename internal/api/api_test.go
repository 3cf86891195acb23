package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"padbridge/internal/bridge"
	"padbridge/internal/config"
	"padbridge/internal/gating"
	"padbridge/internal/network"
	"padbridge/internal/protocol"
	"padbridge/internal/switcher"

	"github.com/gorilla/websocket"
)

const settingsTitle gating.ApplicationID = 0x0005001010047100

type testEnv struct {
	cfg    *config.Manager
	bridge *bridge.Bridge
	server *Server
	http   *httptest.Server
	addr   string
}

func newTestEnv(t *testing.T, token string, sw func(*bridge.Bridge) *switcher.Switcher) *testEnv {
	t.Helper()

	cfg, err := config.NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	c := config.DefaultConfig()
	c.General.APIToken = token
	cfg.Set(c)

	br := bridge.New(bridge.Options{Store: cfg, Predicate: gating.Exact(settingsTitle)})
	br.LoadSettings()

	var s *switcher.Switcher
	if sw != nil {
		s = sw(br)
	}

	srv := NewServer(cfg, br, s)
	br.Gate().SetOnChange(func(gating.Capabilities) { srv.BroadcastStatus() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	return &testEnv{
		cfg:    cfg,
		bridge: br,
		server: srv,
		http:   ts,
		addr:   strings.TrimPrefix(ts.URL, "http://"),
	}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+e.addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to open settings session: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func readMessage(t *testing.T, conn *websocket.Conn, want protocol.MessageType, out interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var raw struct {
			Type    protocol.MessageType `json:"type"`
			Payload json.RawMessage      `json:"payload"`
		}
		if err := conn.ReadJSON(&raw); err != nil {
			t.Fatalf("Failed to read %s message: %v", want, err)
		}
		if raw.Type == want {
			if err := json.Unmarshal(raw.Payload, out); err != nil {
				t.Fatalf("Failed to decode %s payload: %v", want, err)
			}
			return
		}
	}
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.bridge.ApplicationStarted(settingsTitle)

	resp, err := http.Get(env.http.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()

	var st protocol.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}

	if st.Application != "0005001010047100" {
		t.Errorf("Expected application 0005001010047100, got %q", st.Application)
	}
	if !st.Mirror || !st.Redirect {
		t.Errorf("Expected both features effective, got %+v", st)
	}
	if st.UIOpen {
		t.Error("Expected UI to be closed")
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, "secret", nil)

	resp, err := http.Get(env.http.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected health check without token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(env.http.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", env.http.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestSettingsSessionOpensAndClosesUI(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.bridge.ApplicationStarted(settingsTitle)

	conn := env.dial(t)

	var items protocol.ItemsPayload
	readMessage(t, conn, protocol.TypeItems, &items)
	if len(items.Items) != 2 {
		t.Fatalf("Expected 2 toggles, got %d", len(items.Items))
	}
	if items.Items[0].Key != bridge.MirrorScreensKey || items.Items[1].Key != bridge.InputRedirectionKey {
		t.Errorf("Unexpected toggles %+v", items.Items)
	}

	var st protocol.StatusPayload
	readMessage(t, conn, protocol.TypeStatus, &st)
	if !st.UIOpen || st.Mirror || st.Redirect {
		t.Errorf("Expected features disabled while UI is open, got %+v", st)
	}

	conn.Close()
	waitFor(t, "UI to close", func() bool { return !env.bridge.Gate().UIOpen() })

	caps := env.bridge.Gate().Capabilities()
	if !caps.Mirror || !caps.Redirect {
		t.Errorf("Expected features re-enabled after session, got %+v", caps)
	}
}

func TestSecondSessionRejected(t *testing.T) {
	env := newTestEnv(t, "", nil)

	conn := env.dial(t)
	defer conn.Close()
	var items protocol.ItemsPayload
	readMessage(t, conn, protocol.TypeItems, &items)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+env.addr+"/ws", nil)
	if err == nil {
		t.Fatal("Expected second session to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for second session, got %v", resp)
	}
}

func TestSettingsClientApply(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.bridge.ApplicationStarted(settingsTitle)

	client := network.NewSettingsClient(env.addr, "")
	st, err := client.Apply(context.Background(), bridge.InputRedirectionKey, false)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if st.RedirectSetting {
		t.Error("Expected redirect setting to be off")
	}

	waitFor(t, "UI to close", func() bool { return !env.bridge.Gate().UIOpen() })

	if env.bridge.Gate().Capabilities().Redirect {
		t.Error("Expected redirection to stay off after session")
	}

	// The closed session must have persisted the value
	reloaded, _ := config.NewManager(env.cfg.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	v, err := reloaded.LoadBool(bridge.InputRedirectionKey)
	if err != nil || v {
		t.Errorf("Expected persisted false, got %v (%v)", v, err)
	}
}

func TestSettingsClientUnknownKey(t *testing.T) {
	env := newTestEnv(t, "", nil)

	client := network.NewSettingsClient(env.addr, "")
	_, err := client.Apply(context.Background(), "bogus", true)
	if !errors.Is(err, network.ErrUnknownSetting) {
		t.Errorf("Expected ErrUnknownSetting, got %v", err)
	}
}

func TestSwitchVetoedWithoutPrimary(t *testing.T) {
	var switched atomic.Int32
	env := newTestEnv(t, "", func(br *bridge.Bridge) *switcher.Switcher {
		return switcher.New(func(switcher.PanelID) error { switched.Add(1); return nil }, br, "controller-sync")
	})
	env.bridge.ApplicationStarted(settingsTitle)
	env.bridge.Gate().SetPrimaryAbsent(true)

	resp, err := http.Post(env.http.URL+"/api/switch?panel=controller-sync", "", nil)
	if err != nil {
		t.Fatalf("POST /api/switch failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409, got %d", resp.StatusCode)
	}

	resp, err = http.Post(env.http.URL+"/api/switch?panel=tv-remote", "", nil)
	if err != nil {
		t.Fatalf("POST /api/switch failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for other panels, got %d", resp.StatusCode)
	}
	if n := switched.Load(); n != 1 {
		t.Errorf("Expected 1 real switch, got %d", n)
	}

	resp, err = http.Get(env.http.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status failed: %v", err)
	}
	defer resp.Body.Close()
	var st protocol.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if st.Panel != "tv-remote" {
		t.Errorf("Expected current panel tv-remote, got %q", st.Panel)
	}
}

func TestSwitchUnavailable(t *testing.T) {
	env := newTestEnv(t, "", nil)

	resp, err := http.Post(env.http.URL+"/api/switch?panel=tv-remote", "", nil)
	if err != nil {
		t.Fatalf("POST /api/switch failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("Expected 501, got %d", resp.StatusCode)
	}
}

func TestGateChangesDoNotWaitForListener(t *testing.T) {
	cfg, err := config.NewManager(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	br := bridge.New(bridge.Options{Store: cfg, Predicate: gating.Exact(settingsTitle)})

	// No Handler and no Start, as when the port is already taken
	srv := NewServer(cfg, br, nil)
	br.Gate().SetOnChange(func(gating.Capabilities) { srv.BroadcastStatus() })

	returns := func(what string, fn func()) {
		t.Helper()
		done := make(chan struct{})
		go func() {
			fn()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("%s blocked on the status broadcast", what)
		}
	}

	returns("ApplicationStarted", func() { br.ApplicationStarted(settingsTitle) })
	if !br.Gate().Capabilities().Redirect {
		t.Error("Expected redirection effective for the target title")
	}

	returns("ApplicationStarted after switching away", func() { br.ApplicationStarted(0) })
	if br.Gate().Capabilities().Redirect {
		t.Error("Expected redirection off for another title")
	}

	srv.Close()
	returns("ApplicationStarted after Close", func() { br.ApplicationStarted(settingsTitle) })
}

func TestConfigPostAppliesTogglesThroughBridge(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.bridge.ApplicationStarted(settingsTitle)
	port := env.cfg.Get().General.APIPort
	target := env.cfg.Get().Gating.TargetTitle

	body := `{"settings":{"inputRedirection":false,"mirrorScreens":false,"extra":true}}`
	resp, err := http.Post(env.http.URL+"/api/config", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/config failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	caps := env.bridge.Gate().Capabilities()
	if caps.Mirror || caps.Redirect {
		t.Errorf("Expected both features off after the update, got %+v", caps)
	}
	mirror, redirect := env.bridge.Gate().Settings()
	if mirror || redirect {
		t.Errorf("Expected both gate flags off, got mirror=%v redirect=%v", mirror, redirect)
	}

	// Omitted fields keep their values
	cur := env.cfg.Get()
	if cur.General.APIPort != port {
		t.Errorf("Expected api port %d, got %d", port, cur.General.APIPort)
	}
	if cur.Gating.TargetTitle != target {
		t.Errorf("Expected target title %s, got %q", target, cur.Gating.TargetTitle)
	}

	reloaded, _ := config.NewManager(env.cfg.Path())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	for _, key := range []string{bridge.MirrorScreensKey, bridge.InputRedirectionKey} {
		v, err := reloaded.LoadBool(key)
		if err != nil || v {
			t.Errorf("Expected persisted %s=false, got %v (%v)", key, v, err)
		}
	}
	if v, err := reloaded.LoadBool("extra"); err != nil || !v {
		t.Errorf("Expected persisted extra=true, got %v (%v)", v, err)
	}
}

func TestConfigPostWithoutTogglesKeepsThem(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.bridge.ValueChanged(bridge.InputRedirectionKey, false)

	resp, err := http.Post(env.http.URL+"/api/config", "application/json", strings.NewReader(`{"settings":null}`))
	if err != nil {
		t.Fatalf("POST /api/config failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	v, err := env.cfg.LoadBool(bridge.InputRedirectionKey)
	if err != nil || v {
		t.Errorf("Expected stored inputRedirection=false to survive, got %v (%v)", v, err)
	}
	if _, redirect := env.bridge.Gate().Settings(); redirect {
		t.Error("Expected gate redirect flag to stay off")
	}
}
