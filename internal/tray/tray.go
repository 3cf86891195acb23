// Package tray provides the system tray menu using getlantern/systray. While a
// settings session is open the menu also carries the bridge toggles.
package tray

import (
	"errors"
	"sync"

	"github.com/getlantern/systray"
)

// ErrNotReady is returned when toggles are added before the tray is running
var ErrNotReady = errors.New("tray not ready")

// MenuItem represents a menu item
type MenuItem struct {
	ID        int
	Title     string
	Checkable bool
	Callback  func()
	item      *systray.MenuItem
}

type toggle struct {
	item     *systray.MenuItem
	onChange func(bool)
}

// Tray manages the system tray icon and menu
type Tray struct {
	mu      sync.Mutex
	items   []*MenuItem
	toggles map[string]*toggle
	ready   bool

	onReady func()
	onExit  func()
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	t := &Tray{
		items:   make([]*MenuItem, 0),
		toggles: make(map[string]*toggle),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}

	t.onReady = func() {
		systray.SetTitle("padbridge")
		systray.SetTooltip(tooltip)
		systray.SetIcon(getIcon())
	}

	t.onExit = func() {
		close(t.quitCh)
	}

	return t
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Callback: callback})
}

// AddCheckboxItem adds a checkable menu item to the tray
func (t *Tray) AddCheckboxItem(title string, callback func()) int {
	return t.add(&MenuItem{Title: title, Checkable: true, Callback: callback})
}

func (t *Tray) add(mi *MenuItem) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	mi.ID = len(t.items)
	t.items = append(t.items, mi)
	return mi.ID
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, nil) // nil indicates separator
}

// SetItemChecked sets the checked state of a menu item
func (t *Tray) SetItemChecked(id int, checked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		if t.items[id].item != nil {
			if checked {
				t.items[id].item.Check()
			} else {
				t.items[id].item.Uncheck()
			}
		}
	}
}

// AddToggle shows a settings toggle, reusing the menu entry of an earlier
// session with the same key
func (t *Tray) AddToggle(key, label string, defaultValue, current bool, onChange func(bool)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.ready {
		return ErrNotReady
	}

	tg, ok := t.toggles[key]
	if !ok {
		tg = &toggle{item: systray.AddMenuItemCheckbox(label, "", current)}
		t.toggles[key] = tg
		go t.watchToggle(tg)
	}

	tg.item.SetTitle(label)
	if current {
		tg.item.Check()
	} else {
		tg.item.Uncheck()
	}
	tg.onChange = onChange
	tg.item.Show()
	return nil
}

// HideToggles removes the settings toggles from the menu
func (t *Tray) HideToggles() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tg := range t.toggles {
		tg.onChange = nil
		tg.item.Hide()
	}
}

func (t *Tray) watchToggle(tg *toggle) {
	for {
		select {
		case <-tg.item.ClickedCh:
			t.mu.Lock()
			if tg.item.Checked() {
				tg.item.Uncheck()
			} else {
				tg.item.Check()
			}
			checked := tg.item.Checked()
			cb := tg.onChange
			t.mu.Unlock()

			if cb != nil {
				cb(checked)
			}
		case <-t.quitCh:
			return
		}
	}
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	t.onReady()

	t.mu.Lock()
	defer close(t.readyCh)
	defer t.mu.Unlock()

	for _, menuItem := range t.items {
		if menuItem == nil {
			systray.AddSeparator()
			continue
		}

		if menuItem.Checkable {
			menuItem.item = systray.AddMenuItemCheckbox(menuItem.Title, "", false)
		} else {
			menuItem.item = systray.AddMenuItem(menuItem.Title, "")
		}

		// Handle clicks in goroutine
		if menuItem.Callback != nil {
			go func(mi *MenuItem) {
				for {
					select {
					case <-mi.item.ClickedCh:
						mi.Callback()
					case <-t.quitCh:
						return
					}
				}
			}(menuItem)
		}
	}
	t.ready = true
}

// Ready returns a channel closed once the menu can be used
func (t *Tray) Ready() <-chan struct{} {
	return t.readyCh
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory: 16x16, 32bpp, 1096 bytes at offset 22
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00,
		0x16, 0x00, 0x00, 0x00,
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	return icon
}
