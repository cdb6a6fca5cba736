package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig
	logger *slog.Logger

	mu     sync.Mutex
	server *zeroconf.Server
}

var _ Advertiser = (*MDNSAdvertiser)(nil)

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) (*MDNSAdvertiser, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.Interface != "" {
		if _, err := net.InterfaceByName(config.Interface); err != nil {
			return nil, fmt.Errorf("advertise interface %q: %w", config.Interface, err)
		}
	}
	return &MDNSAdvertiser{config: config, logger: logger}, nil
}

// Advertise registers info, replacing any previous registration.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *InstanceInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	ttl := a.config.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	server, err := zeroconf.Register(
		info.InstanceName(),
		ServiceType,
		Domain,
		info.Port,
		TXTRecordsToStrings(EncodeTXT(info)),
		interfaces(a.config.Interface),
		zeroconf.TTL(uint32(ttl.Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	a.server = server
	a.logger.Info("advertising via mDNS",
		slog.String("instance", info.InstanceName()),
		slog.String("service", ServiceType),
		slog.Int("port", info.Port))
	return nil
}

// Stop withdraws the current advertisement.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Debug("mDNS advertisement withdrawn")
	}
	return nil
}

// interfaces returns the interfaces to use, nil for all.
func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Browse searches for emulator instances until ctx is done. Entries seen
// on several interfaces are merged by instance name and re-emitted when
// their address set grows.
func Browse(ctx context.Context, config BrowserConfig) (<-chan *Service, error) {
	var opts []zeroconf.ClientOption
	if ifaces := interfaces(config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				if svc == nil {
					continue
				}
				if existing, seen := services[svc.Name]; seen {
					if !mergeAddresses(existing, svc.Addresses) {
						continue
					}
					svc = existing
				} else {
					services[svc.Name] = svc
				}
				copied := *svc
				copied.Addresses = append([]string(nil), svc.Addresses...)
				select {
				case out <- &copied:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					removed = nil
					continue
				}
				delete(services, entry.Instance)

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// Find browses until an instance with the given name appears.
func Find(ctx context.Context, config BrowserConfig, name string) (*Service, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	services, err := Browse(ctx, config)
	if err != nil {
		return nil, err
	}
	for svc := range services {
		if svc.Name == name {
			return svc, nil
		}
	}
	return nil, fmt.Errorf("instance %q not found: %w", name, ctx.Err())
}

func entryToService(entry *zeroconf.ServiceEntry) *Service {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return nil
	}
	info.Name = entry.Instance
	info.Port = entry.Port

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		InstanceInfo: *info,
		Host:         entry.HostName,
		Addresses:    addrs,
	}
}

// mergeAddresses adds unseen addresses to svc and reports whether any
// were added.
func mergeAddresses(svc *Service, addrs []string) bool {
	added := false
	for _, a := range addrs {
		if !slices.Contains(svc.Addresses, a) {
			svc.Addresses = append(svc.Addresses, a)
			added = true
		}
	}
	return added
}
