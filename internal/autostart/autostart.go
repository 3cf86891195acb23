// Package autostart registers padbridge to start on login.
package autostart

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/template"
)

// ErrUnsupported is returned on platforms without a login item mechanism
var ErrUnsupported = errors.New("autostart: unsupported platform")

const appID = "io.padbridge.agent"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.ID}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=padbridge
Exec="{{.ExecutablePath}}"
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

var (
	plistTmpl   = template.Must(template.New("plist").Parse(macLaunchAgentPlist))
	desktopTmpl = template.Must(template.New("desktop").Parse(xdgDesktopEntry))
)

type entry struct {
	ID             string
	ExecutablePath string
}

// Enable enables auto-start on login
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	return enable(execPath)
}

// Disable disables auto-start on login
func Disable() error {
	return disable()
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	return isEnabled()
}

// Set enables or disables auto-start
func Set(enabled bool) error {
	if enabled {
		return Enable()
	}
	return Disable()
}

func writeEntry(w io.Writer, t *template.Template, execPath string) error {
	return t.Execute(w, entry{ID: appID, ExecutablePath: execPath})
}

func writeEntryFile(path string, t *template.Template, execPath string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeEntry(f, t, execPath); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
