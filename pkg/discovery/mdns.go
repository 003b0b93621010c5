// Package discovery advertises and finds sketchsync servers on the local network over mDNS.
package discovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_sketchsync._tcp"

// Info is published in the TXT record of the advertisement.
type Info struct {
	Instance string
	Version  string
	Boards   []string
}

func (i Info) txt() []string {
	records := []string{"app=sketchsync"}
	if i.Version != "" {
		records = append(records, "version="+i.Version)
	}
	boards := append([]string(nil), i.Boards...)
	sort.Strings(boards)
	for _, b := range boards {
		records = append(records, "board="+b)
	}
	return records
}

type server struct {
	inner *mdns.Server
}

func (s *server) Close() error {
	return s.inner.Shutdown()
}

// Advertise publishes the server on port until the returned closer is closed.
func Advertise(port int, info Info) (io.Closer, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	if info.Instance == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	service, err := mdns.NewMDNSService(info.Instance, ServiceType, "", "", port, nil, info.txt())
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}
	inner, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return &server{inner: inner}, nil
}

// Browse looks for advertised servers until timeout and returns their host:port addresses.
func Browse(ctx context.Context, timeout time.Duration) ([]string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	var found []string
	go func() {
		defer close(done)
		seen := map[string]bool{}
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			addr := fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)
			if !seen[addr] {
				seen[addr] = true
				found = append(found, addr)
				slog.Debug("discovered", "addr", addr, "name", e.Name)
			}
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}
	sort.Strings(found)
	return found, nil
}
