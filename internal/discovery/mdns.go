package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type radio bridges advertise
	ServiceType = "_lorahub._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for hub discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPath is the bridge endpoint when the TXT record has none
	DefaultPath = "/radio"
)

// Scanner handles mDNS hub discovery
type Scanner struct {
	// Timeout is the maximum time to wait for discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// browse runs one mDNS browse bounded by s.Timeout and hands each
// resolved hub to visit until visit returns false or the time is up.
func (s *Scanner) browse(ctx context.Context, visit func(*Hub) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if hub := parseServiceEntry(entry); hub != nil && !visit(hub) {
					cancel()
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	<-ctx.Done()
	<-done
	return nil
}

// ScanForHubs browses for bridges until the timeout and returns every hub
// that answered, once per instance name.
func (s *Scanner) ScanForHubs(ctx context.Context) ([]*Hub, error) {
	var hubs []*Hub
	seen := make(map[string]bool)
	err := s.browse(ctx, func(h *Hub) bool {
		if !seen[h.Instance] {
			seen[h.Instance] = true
			hubs = append(hubs, h)
		}
		return true
	})
	return hubs, err
}

// FindHub returns the first hub that answers, or the one named instance
// when instance is not empty.
func (s *Scanner) FindHub(ctx context.Context, instance string) (*Hub, error) {
	var found *Hub
	err := s.browse(ctx, func(h *Hub) bool {
		if found == nil && (instance == "" || h.Instance == instance) {
			found = h
		}
		return found == nil
	})
	switch {
	case err != nil:
		return nil, err
	case found != nil:
		return found, nil
	case instance != "":
		return nil, fmt.Errorf("hub %q not found within %v", instance, s.Timeout)
	default:
		return nil, fmt.Errorf("no hub found within %v", s.Timeout)
	}
}

// Advertise registers a bridge listening on port. Extra TXT entries take
// the form "key=value". Call Shutdown on the returned server to withdraw it.
func Advertise(instance string, port int, path string, extra ...string) (*zeroconf.Server, error) {
	if path == "" {
		path = DefaultPath
	}
	txt := append([]string{"path=" + path}, extra...)
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server, nil
}

// parseServiceEntry converts a zeroconf service entry to a Hub.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Hub {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	var ip string
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0].String()
	default:
		return nil
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Hub{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
