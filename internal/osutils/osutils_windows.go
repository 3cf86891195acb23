//go:build windows

// Package osutils provides the platform specific helpers: privilege checks,
// firewall setup and foreground process lookup.
package osutils

import (
	"fmt"
	"log"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token)
	if err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err = windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}

	return member
}

// EnsureFirewallRule checks that inbound rules exist for the settings API
// (TCP) and the auxiliary controller feed (UDP), and creates them using
// PowerShell with admin elevation otherwise.
func EnsureFirewallRule(apiPort, auxPort int) error {
	ruleName := "padbridge"

	log.Printf("Firewall: Checking status for rule '%s' on ports %d/tcp %d/udp...", ruleName, apiPort, auxPort)

	// netsh lists both protocol rules under the shared name
	checkCmd := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+ruleName)
	output, err := checkCmd.CombinedOutput()
	outputStr := string(output)

	if err == nil && strings.Contains(outputStr, ruleName) {
		if strings.Contains(outputStr, fmt.Sprintf("%d", apiPort)) &&
			strings.Contains(outputStr, fmt.Sprintf("%d", auxPort)) &&
			strings.Contains(outputStr, "Allow") {
			log.Printf("Firewall: Rule '%s' already exists and matches. OK.", ruleName)
			return nil
		}
		log.Printf("Firewall: Rule '%s' exists but port/action mismatch. Updating...", ruleName)
	} else {
		log.Printf("Firewall: Rule '%s' not found. Creating...", ruleName)
	}

	// Port based, so the rule survives moving the executable
	psCommand := fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%[1]s' -ErrorAction SilentlyContinue; "+
			"New-NetFirewallRule -DisplayName '%[1]s' -Direction Inbound -LocalPort %[2]d -Protocol TCP -Action Allow -Profile Any; "+
			"New-NetFirewallRule -DisplayName '%[1]s' -Direction Inbound -LocalPort %[3]d -Protocol UDP -Action Allow -Profile Any",
		ruleName, apiPort, auxPort,
	)

	// Execute with RunAs verb to trigger UAC if not already admin
	if !IsAdmin() {
		log.Println("Firewall: Current process is NOT elevated. Requesting UAC elevation via ShellExecute...")

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		var showCmd int32 = 0 // SW_HIDE

		err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, showCmd)
		if err != nil {
			return fmt.Errorf("failed to launch elevated powershell via ShellExecute: %w", err)
		}
		log.Println("Firewall: UAC prompt requested. Please check your screen/taskbar.")
	} else {
		log.Println("Firewall: Already running as admin. Applying port-based rules directly.")
		cmd := exec.Command("powershell", "-NoProfile", "-Command", psCommand)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to create firewall rule: %w (Output: %s)", err, string(output))
		}
		log.Printf("Firewall: Successfully applied rules for ports %d/tcp %d/udp", apiPort, auxPort)
	}

	return nil
}
