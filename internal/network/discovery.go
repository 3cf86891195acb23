// Package network provides LAN discovery, the UDP auxiliary controller
// transport and the UDP log sink.
package network

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DiscoveredHost represents a bridge found on the network
type DiscoveredHost struct {
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Application string `json:"application,omitempty"`
	Mirror      bool   `json:"mirror"`
	Redirect    bool   `json:"redirect"`
}

// GetLocalIP returns the primary local IP address
func GetLocalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

// ScanLAN scans the local /24 for other bridges
func ScanLAN(ctx context.Context, port int) ([]DiscoveredHost, error) {
	localIP, err := GetLocalIP()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IP: %w", err)
	}

	parts := strings.Split(localIP, ".")
	if len(parts) != 4 {
		return nil, fmt.Errorf("invalid IP address format: %s", localIP)
	}

	subnet := fmt.Sprintf("%s.%s.%s", parts[0], parts[1], parts[2])

	var hosts []DiscoveredHost
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 1; i <= 254; i++ {
		ip := fmt.Sprintf("%s.%d", subnet, i)
		if ip == localIP {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if host, ok := ProbeHost(ctx, fmt.Sprintf("%s:%d", ip, port)); ok {
				mu.Lock()
				hosts = append(hosts, host)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return hosts, ctx.Err()
}

// ProbeHost checks whether addr ("ip:port") runs the bridge API
func ProbeHost(ctx context.Context, addr string) (DiscoveredHost, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return DiscoveredHost{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return DiscoveredHost{}, false
	}
	found := DiscoveredHost{IP: host, Port: port}

	client := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, "GET", "http://"+addr+"/health", nil)
	if err != nil {
		return DiscoveredHost{}, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return DiscoveredHost{}, false
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return DiscoveredHost{}, false
	}

	// Status may require a token; a healthy host is still reported
	req, err = http.NewRequestWithContext(ctx, "GET", "http://"+addr+"/api/status", nil)
	if err != nil {
		return found, true
	}
	resp, err = client.Do(req)
	if err != nil {
		return found, true
	}
	defer resp.Body.Close()

	var status struct {
		Application string `json:"application"`
		Mirror      bool   `json:"mirror"`
		Redirect    bool   `json:"redirect"`
	}
	if resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&status) == nil {
		found.Application = status.Application
		found.Mirror = status.Mirror
		found.Redirect = status.Redirect
	}
	return found, true
}

// GetLocalIPs returns all available local IPv4 addresses
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
