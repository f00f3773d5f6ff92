// Package discovery advertises the controller over mDNS and finds
// controllers on the local network.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"

	"github.com/smazurov/lightnode/internal/logging"
)

// Service constants.
const (
	ServiceType = "_lightnode._tcp"
	Domain      = "local."

	// MaxInstanceNameLen is the DNS label limit for the instance name.
	MaxInstanceNameLen = 63

	// BrowseTimeout is the default time Find listens for answers.
	BrowseTimeout = 3 * time.Second
)

// Info is what a controller publishes in its TXT record.
type Info struct {
	Version string
	APIPath string
	Driver  string
}

// Advertiser publishes one service instance.
type Advertiser struct {
	name   string
	port   int
	info   Info
	logger *slog.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser prepares an advertisement for port. An empty name uses
// "lightnode-<hostname>".
func NewAdvertiser(name string, port int, info Info) (*Advertiser, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	if name == "" {
		host, _ := os.Hostname()
		name = "lightnode-" + host
	}
	return &Advertiser{
		name:   InstanceName(name),
		port:   port,
		info:   info,
		logger: logging.GetLogger("discovery"),
	}, nil
}

// Name returns the advertised instance name.
func (a *Advertiser) Name() string {
	return a.name
}

// Start registers the service on all interfaces.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	server, err := zeroconf.Register(a.name, ServiceType, Domain, a.port, EncodeTXT(a.info), nil)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}
	a.server = server
	a.logger.Info("Advertising over mDNS", "instance", a.name, "service", ServiceType, "port", a.port)
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("Stopped mDNS advertisement", "instance", a.name)
	}
}

// InstanceName makes s usable as a DNS-SD instance label.
func InstanceName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '.':
			return '-'
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(s))
	if len(s) > MaxInstanceNameLen {
		s = s[:MaxInstanceNameLen]
	}
	return s
}

// EncodeTXT renders info as key=value strings, skipping empty values.
func EncodeTXT(info Info) []string {
	var txt []string
	add := func(k, v string) {
		if v != "" {
			txt = append(txt, k+"="+v)
		}
	}
	add("version", info.Version)
	add("api", info.APIPath)
	add("driver", info.Driver)
	return txt
}

// DecodeTXT parses a TXT record produced by EncodeTXT. Unknown keys and
// malformed entries are ignored.
func DecodeTXT(txt []string) Info {
	var info Info
	for _, entry := range txt {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(k) {
		case "version":
			info.Version = v
		case "api":
			info.APIPath = v
		case "driver":
			info.Driver = v
		}
	}
	return info
}

// Controller is a controller found on the network.
type Controller struct {
	Instance string
	Host     string
	Port     int
	Addrs    []string
	Info     Info
}

// URL returns the base URL of the controller's HTTP API, preferring IPv4.
func (c Controller) URL() string {
	host := c.Host
	if len(c.Addrs) > 0 {
		host = c.Addrs[0]
	}
	host = strings.TrimSuffix(host, ".")
	return "http://" + net.JoinHostPort(host, fmt.Sprint(c.Port))
}

// ErrNoneFound is returned by Find when nothing answered in time.
var ErrNoneFound = errors.New("no lightnode controllers found")

// Find browses for controllers until ctx is done or timeout elapses and
// returns them sorted by instance name.
func Find(ctx context.Context, timeout time.Duration) ([]Controller, error) {
	if timeout <= 0 {
		timeout = BrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	browseErr := make(chan error, 1)
	go func() {
		browseErr <- zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	found := make(map[string]Controller)
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}
			c := fromEntry(entry)
			if prev, exists := found[c.Instance]; exists {
				c.Addrs = mergeAddrs(prev.Addrs, c.Addrs)
			}
			found[c.Instance] = c
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			delete(found, entry.Instance)
		case err := <-browseErr:
			if err != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("browse %s: %w", ServiceType, err)
			}
			browseErr = nil
		case <-ctx.Done():
			return collect(found)
		}
	}
}

func collect(found map[string]Controller) ([]Controller, error) {
	if len(found) == 0 {
		return nil, ErrNoneFound
	}
	out := make([]Controller, 0, len(found))
	for _, c := range found {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
	return out, nil
}

func fromEntry(entry *zeroconf.ServiceEntry) Controller {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return Controller{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     entry.Port,
		Addrs:    addrs,
		Info:     DecodeTXT(entry.Text),
	}
}

func mergeAddrs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, addr := range a {
		seen[addr] = true
	}
	for _, addr := range b {
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
