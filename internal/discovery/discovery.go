// Package discovery advertises a running bridge over mDNS so LAN tooling
// can find it, adapted from the teacher's cmd/can-server/mdns.go
// (grandcat/zeroconf service registration) — a supplemental feature
// spec.md neither requires nor excludes (SPEC_FULL §D).
package discovery

import (
	"fmt"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type bridges advertise themselves under.
const ServiceType = "_canopen-bridge._tcp"

// Advertisement is a live mDNS registration; Shutdown deregisters it.
type Advertisement struct {
	service *zeroconf.Server
}

// Advertise registers instance (or a hostname-derived default if empty) as
// ServiceType on port, with TXT records node_id, device, and interface
// describing the CANopen node the bridge serves.
func Advertise(instance string, port int, nodeID uint8, deviceName, canInterface string) (*Advertisement, error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("canbridge-%s", host)
	}
	txt := []string{
		fmt.Sprintf("node_id=%d", nodeID),
		"device=" + deviceName,
		"interface=" + canInterface,
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return &Advertisement{service: svc}, nil
}

// Shutdown deregisters the advertisement. Safe to call on a nil receiver
// (matches the teacher's "always have a cleanup func, even if disabled"
// pattern without forcing callers to nil-check).
func (a *Advertisement) Shutdown() {
	if a == nil || a.service == nil {
		return
	}
	a.service.Shutdown()
	// zeroconf's unregister goodbye packet is best-effort and async; give it
	// a moment to go out before the process exits, as the teacher's mdns.go
	// cleanup does.
	time.Sleep(50 * time.Millisecond)
}
