// padbridge - GamePad input redirection and screen mirroring
// Lets a classic or pro controller drive the settings application and shows
// the GamePad screen on the TV.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"padbridge/internal/api"
	"padbridge/internal/autostart"
	"padbridge/internal/bridge"
	"padbridge/internal/config"
	"padbridge/internal/display"
	"padbridge/internal/gating"
	"padbridge/internal/host"
	"padbridge/internal/input"
	"padbridge/internal/network"
	"padbridge/internal/osutils"
	"padbridge/internal/protocol"
	"padbridge/internal/sdlpad"
	"padbridge/internal/switcher"
	"padbridge/internal/titles"
	"padbridge/internal/tray"
)

var (
	version    = "0.1.0"
	showVer    = flag.Bool("version", false, "Show version")
	configPath = flag.String("config", "", "Configuration file (default: per-user config dir)")
	showStatus = flag.Bool("status", false, "Print the status of a running bridge")
	setValue   = flag.String("set", "", "Change a setting on a running bridge, e.g. mirrorScreens=false")
	listItems  = flag.Bool("list", false, "List the settings of a running bridge")
	discover   = flag.Bool("discover", false, "Scan the LAN for running bridges")
	feedAddr   = flag.String("feed", "", "Stream local game controllers to the bridge at ip:port")
	hostAddr   = flag.String("host", "", "Address of the bridge for -status and -set (default: 127.0.0.1:<api port>)")
	appID      = flag.String("app", "", "Fixed application title id instead of watching the foreground window")
)

// auxBufferSize is the sampling ring size the host requests
const auxBufferSize = 16

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("padbridge version %s\n", version)
		return
	}

	var envCfg config.Env
	if err := config.ParseEnv(&envCfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}
	if *configPath != "" {
		envCfg.ConfigPath = *configPath
	}

	cfgMgr, err := config.NewManager(envCfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}
	cfgMgr.ApplyEnv(envCfg)

	switch {
	case *showStatus:
		printStatus(cfgMgr)
	case *setValue != "":
		applySetting(cfgMgr, *setValue)
	case *listItems:
		listSettings(cfgMgr)
	case *discover:
		discoverBridges(cfgMgr)
	case *feedAddr != "":
		runFeeder(*feedAddr)
	default:
		runService(cfgMgr)
	}
}

func bridgeAddr(cfgMgr *config.Manager) string {
	if *hostAddr != "" {
		return *hostAddr
	}
	return fmt.Sprintf("127.0.0.1:%d", cfgMgr.Get().General.APIPort)
}

func printStatus(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()
	req, err := http.NewRequest("GET", "http://"+bridgeAddr(cfgMgr)+"/api/status", nil)
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}
	if cfg.General.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.General.APIToken)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to reach bridge: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Bridge replied %s", resp.Status)
	}

	var st protocol.StatusPayload
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		log.Fatalf("Invalid status: %v", err)
	}
	printStatusPayload(st)
}

func printStatusPayload(st protocol.StatusPayload) {
	app := st.Application
	if app == "" {
		app = "(none)"
	}
	fmt.Printf("Application:     %s\n", app)
	fmt.Printf("Settings open:   %v\n", st.UIOpen)
	fmt.Printf("Mirror:          %v (setting %v)\n", st.Mirror, st.MirrorSetting)
	fmt.Printf("Redirect:        %v (setting %v)\n", st.Redirect, st.RedirectSetting)
	fmt.Printf("GamePad missing: %v\n", st.PrimaryAbsent)
	if st.Panel != "" {
		fmt.Printf("Panel:           %s\n", st.Panel)
	}
}

func applySetting(cfgMgr *config.Manager, kv string) {
	key, raw, ok := strings.Cut(kv, "=")
	if !ok {
		log.Fatalf("Expected key=value, got %q", kv)
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := network.NewSettingsClient(bridgeAddr(cfgMgr), cfgMgr.Get().General.APIToken)
	st, err := client.Apply(ctx, key, value)
	if err != nil {
		log.Fatalf("Failed to set %s: %v", key, err)
	}
	printStatusPayload(st)
}

func listSettings(cfgMgr *config.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client := network.NewSettingsClient(bridgeAddr(cfgMgr), cfgMgr.Get().General.APIToken)
	items, err := client.Items(ctx)
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	for _, it := range items {
		fmt.Printf("%-18s %-6v %s (default %v)\n", it.Key, it.Value, it.Label, it.Default)
	}
}

func discoverBridges(cfgMgr *config.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hosts, err := network.ScanLAN(ctx, cfgMgr.Get().General.APIPort)
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}
	fmt.Println("Bridges on the LAN:")
	fmt.Println("-------------------")
	for _, h := range hosts {
		fmt.Printf("%s:%d  application=%s mirror=%v redirect=%v\n", h.IP, h.Port, h.Application, h.Mirror, h.Redirect)
	}
}

// runFeeder forwards local game controllers to a remote bridge
func runFeeder(addr string) {
	sender := network.NewUDPSender(addr)
	if !sender.Probe() {
		log.Printf("Warning: no reply from %s, streaming anyway", addr)
	}
	if err := sender.Start(); err != nil {
		log.Fatalf("Failed to start UDP sender: %v", err)
	}
	defer sender.Stop()

	pads := sdlpad.New(0)
	for ch := input.Channel(0); ch < sdlpad.MaxChannels; ch++ {
		pads.SetSamplingCallback(ch, func(ch input.Channel) {
			if st, err := pads.Read(ch); err == nil {
				sender.Send(ch, st)
			}
		})
	}
	if err := pads.Start(); err != nil {
		log.Fatalf("Failed to start SDL: %v", err)
	}
	defer pads.Stop()

	log.Printf("Feeding controllers to %s. Press Ctrl+C to stop.", addr)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// startAux creates the configured auxiliary controller source
func startAux(cfg *config.Config) (input.AuxSource, func()) {
	switch cfg.General.AuxSource {
	case "sdl":
		pads := sdlpad.New(0)
		if err := pads.Start(); err != nil {
			log.Printf("Warning: SDL controller source unavailable: %v", err)
			return nil, func() {}
		}
		return pads, pads.Stop
	case "udp":
		recv := network.NewUDPReceiver(cfg.General.AuxUDPPort)
		if err := recv.Start(); err != nil {
			log.Printf("Warning: UDP controller source unavailable: %v", err)
			return nil, func() {}
		}
		return recv, recv.Stop
	case "none", "":
		return nil, func() {}
	default:
		log.Printf("Warning: unknown aux source %q, running without one", cfg.General.AuxSource)
		return nil, func() {}
	}
}

func runService(cfgMgr *config.Manager) {
	cfg := cfgMgr.Get()

	if cfg.General.UDPLog {
		if w, err := network.NewUDPLogWriter(network.DefaultLogAddr); err == nil {
			log.SetOutput(io.MultiWriter(os.Stderr, w))
			defer w.Close()
		} else {
			log.Printf("Warning: UDP log unavailable: %v", err)
		}
	}

	log.Printf("padbridge %s starting...", version)

	pred, err := cfgMgr.Predicate()
	if err != nil {
		log.Fatalf("Invalid gating configuration: %v", err)
	}

	cfgMgr.RegisterChangeCallback(func() {
		log.Println("Config: Configuration updated; gating policy and ports apply after restart")
	})

	aux, stopAux := startAux(cfg)
	defer stopAux()

	br := bridge.New(bridge.Options{
		Store:     cfgMgr,
		Predicate: pred,
		Aux:       aux,
	})
	br.LoadSettings()

	// Panel switches of the settings application
	sw := switcher.New(func(panel switcher.PanelID) error {
		return nil
	}, br, switcher.PanelID(cfg.Gating.VetoPanel))
	sw.SetOnSwitch(func(panel switcher.PanelID) {
		log.Printf("Host: Opened panel '%s'", panel)
	})
	sw.SetOnVeto(func(panel switcher.PanelID) {
		log.Printf("Host: Panel '%s' needs the GamePad", panel)
	})

	// Start API server if enabled
	var apiServer *api.Server
	if cfg.General.APIEnabled {
		if runtime.GOOS == "windows" {
			if !osutils.IsAdmin() {
				log.Println("Warning: not running as administrator, firewall rules may not be created")
			}
			go func() {
				if err := osutils.EnsureFirewallRule(cfg.General.APIPort, cfg.General.AuxUDPPort); err != nil {
					log.Printf("Firewall warning: %v", err)
				}
			}()
		}

		apiServer = api.NewServer(cfgMgr, br, sw)
		go func() {
			if err := apiServer.Start(cfg.General.APIPort); err != nil {
				log.Printf("API server error: %v", err)
			}
		}()
		defer apiServer.Close()
	}

	if apiServer != nil {
		br.Gate().SetOnChange(func(gating.Capabilities) {
			apiServer.BroadcastStatus()
		})
	}

	// Application identity
	if *appID != "" {
		id, err := gating.ParseApplicationID(*appID)
		if err != nil {
			log.Fatalf("Invalid -app: %v", err)
		}
		br.ApplicationStarted(id)
	} else {
		watcher := titles.NewWatcher(osutils.ForegroundExecutable, cfgMgr,
			time.Duration(cfg.General.PollIntervalMs)*time.Millisecond, br.ApplicationStarted)
		if err := watcher.Start(); err != nil {
			log.Printf("Warning: %v. No application will be reported; pass -app <title id> to set one", err)
		} else {
			defer watcher.Stop()
		}
	}

	// Host frame loop through the intercepted entry points
	br.InitAux(host.InitAux)(auxBufferSize)
	screens := &host.Screens{}
	loop := host.NewLoop(
		br.ReadPrimary(host.Disconnected),
		br.CopyToScanBuffer(screens.Submit),
		host.NewFrame(&display.SoftwareResolver{}, display.AA1X),
		16*time.Millisecond,
	)
	loop.SetOnButtons(func(hold, trigger uint32) {
		log.Printf("Host: Holding %s", host.Describe(hold))
	})
	loop.Start()
	defer loop.Stop()

	// Tray instance
	t := tray.New("padbridge - GamePad bridge")

	var settingsMu sync.Mutex
	settingsOpen := false
	var settingsItem int
	settingsItem = t.AddCheckboxItem("Settings", func() {
		settingsMu.Lock()
		defer settingsMu.Unlock()

		if settingsOpen {
			br.ConfigClosed()
			t.HideToggles()
			settingsOpen = false
			t.SetItemChecked(settingsItem, false)
			return
		}

		if br.Gate().UIOpen() {
			log.Println("Tray: Settings are open in another session")
			t.SetItemChecked(settingsItem, false)
			return
		}
		if err := br.ConfigOpened(t); err != nil {
			log.Printf("Tray: %v", err)
			t.HideToggles()
			t.SetItemChecked(settingsItem, false)
			return
		}
		settingsOpen = true
		t.SetItemChecked(settingsItem, true)
	})

	var loginItem int
	loginItem = t.AddCheckboxItem("Start at login", func() {
		enabled := !autostart.IsEnabled()
		if err := autostart.Set(enabled); err != nil {
			log.Printf("Autostart: %v", err)
		}
		t.SetItemChecked(loginItem, autostart.IsEnabled())
	})

	t.AddSeparator()

	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	go func() {
		<-t.Ready()
		t.SetItemChecked(loginItem, autostart.IsEnabled())
	}()

	// Periodic frame statistics
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			tv, drc := screens.Counts()
			log.Printf("Host: %d GamePad frames, %d on TV", drc, tv)
			if recv, ok := aux.(*network.UDPReceiver); ok && !recv.HasFeeders() {
				log.Println("UDP Source: No controller feeder connected")
			}
		}
	}()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		t.Stop()
	}()

	log.Println("padbridge running. Press Ctrl+C to stop.")
	t.Run()

	settingsMu.Lock()
	if settingsOpen {
		br.ConfigClosed()
	}
	settingsMu.Unlock()
}
