package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// ErrNotFound is returned by Find when no bridge matched before the
// context ended.
var ErrNotFound = errors.New("bridge not found")

// AdvertiserConfig configures an MDNSAdvertiser.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       DefaultTTL,
	}
}

// BrowserConfig configures an MDNSBrowser.
type BrowserConfig struct {
	// Interface specifies which network interface to browse on.
	// Empty means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{}
}

// MDNSAdvertiser announces one bridge using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts announcing info, replacing any earlier announcement.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *BridgeInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Stop existing if any
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.InstanceName(),
		ServiceType,
		Domain,
		int(info.Port),
		TXTRecordsToStrings(EncodeBridgeTXT(info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register bridge service: %w", err)
	}

	a.server = server
	return nil
}

// Advertising reports whether a bridge is being announced.
func (a *MDNSAdvertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the announcement.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.Shutdown()
	a.server = nil
	return nil
}

// ServiceEntry is a resolved DNS-SD entry, decoupled from the zeroconf
// types.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

func entryFromZeroconf(entry *zeroconf.ServiceEntry) ServiceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return ServiceEntry{
		Instance: entry.Instance,
		Host:     entry.HostName,
		Port:     uint16(entry.Port),
		Text:     entry.Text,
		Addrs:    addrs,
	}
}

// ToBridgeService converts the entry into a BridgeService.
func (e *ServiceEntry) ToBridgeService() (*BridgeService, error) {
	info, err := DecodeBridgeTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	return &BridgeService{
		InstanceName:  e.Instance,
		Host:          e.Host,
		Port:          e.Port,
		Addresses:     append([]string(nil), e.Addrs...),
		Path:          info.Path,
		ObservationID: info.ObservationID,
		Formats:       info.Formats,
		Name:          info.Name,
	}, nil
}

// MDNSBrowser finds bridges using zeroconf.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// browserOptions returns zeroconf client options based on config.
func (b *MDNSBrowser) browserOptions() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	// Select specific interface if configured
	if b.config.Interface != "" {
		iface, err := net.InterfaceByName(b.config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// Browse searches for bridges until ctx ends, then closes the channel.
// Services are aggregated by instance name: addresses seen on several
// interfaces are combined into one entry, emitted once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *BridgeService, error) {
	out := make(chan *BridgeService)

	zEntries := make(chan *zeroconf.ServiceEntry)
	zRemoved := make(chan *zeroconf.ServiceEntry)
	entries := make(chan ServiceEntry)
	removed := make(chan ServiceEntry)

	go convertEntries(ctx, zEntries, entries)
	go convertEntries(ctx, zRemoved, removed)
	go aggregate(ctx, entries, removed, out)

	opts := b.browserOptions()
	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, zEntries, zRemoved, opts...)
	}()

	return out, nil
}

// Find returns the first bridge advertising observationID, or the first
// bridge at all when observationID is empty.
func (b *MDNSBrowser) Find(ctx context.Context, observationID string) (*BridgeService, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	return findIn(results, observationID)
}

func findIn(results <-chan *BridgeService, observationID string) (*BridgeService, error) {
	for svc := range results {
		if observationID == "" || svc.ObservationID == observationID {
			return svc, nil
		}
	}
	return nil, ErrNotFound
}

func convertEntries(ctx context.Context, in <-chan *zeroconf.ServiceEntry, out chan<- ServiceEntry) {
	defer close(out)
	for {
		select {
		case entry, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- entryFromZeroconf(entry):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// aggregate turns raw entries into bridge services and closes out when
// entries closes or ctx ends.
func aggregate(ctx context.Context, entries, removed <-chan ServiceEntry, out chan<- *BridgeService) {
	defer close(out)

	// Track services by instance name, aggregating addresses
	services := make(map[string]*BridgeService)

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			svc, err := entry.ToBridgeService()
			if err != nil {
				continue
			}

			if existing, found := services[svc.InstanceName]; found {
				existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
				continue
			}
			services[svc.InstanceName] = svc
			emit := *svc
			emit.Addresses = slices.Clone(svc.Addresses)
			select {
			case out <- &emit:
			case <-ctx.Done():
				return
			}

		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			// Remove addresses that came from this interface
			if existing, found := services[entry.Instance]; found {
				existing.Addresses = removeAddresses(existing.Addresses, entry.Addrs)
				if len(existing.Addresses) == 0 {
					delete(services, entry.Instance)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, new []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}

	for _, addr := range new {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses returns addresses without the ones in gone.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
