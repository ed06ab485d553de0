package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Hub is a radio bridge found on the network.
type Hub struct {
	// Instance is the mDNS instance name (e.g., "gateway-01")
	Instance string

	// Hostname is the mDNS hostname (e.g., "gateway-01.local.")
	Hostname string

	// IP is the first advertised address, IPv4 preferred
	IP string

	// Port is the bridge's HTTP port
	Port int

	// Metadata contains the TXT record data ("path=/radio", "version=...")
	Metadata map[string]string

	// DiscoveredAt is when the hub was discovered
	DiscoveredAt time.Time
}

func (h *Hub) String() string {
	return fmt.Sprintf("Hub %s (%s) at %s", h.Instance, h.Hostname, net.JoinHostPort(h.IP, strconv.Itoa(h.Port)))
}

// URL returns the WebSocket URL of the bridge.
func (h *Hub) URL() string {
	path := h.GetMetadata("path")
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(h.IP, strconv.Itoa(h.Port)), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (h *Hub) GetMetadata(key string) string {
	if h.Metadata == nil {
		return ""
	}
	return h.Metadata[key]
}
