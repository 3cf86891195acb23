//go:build windows

package osutils

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// ForegroundExecutable returns the executable name (without directory) of the
// process owning the focused window
func ForegroundExecutable() (string, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return "", ErrNoForegroundWindow
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return "", fmt.Errorf("window process: %w", err)
	}

	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", fmt.Errorf("process image name: %w", err)
	}

	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}
