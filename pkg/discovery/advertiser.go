package discovery

import (
	"context"
	"log/slog"
	"time"
)

// Advertiser publishes an emulator instance on the local network.
type Advertiser interface {
	// Advertise starts (or replaces) the advertisement for info.
	Advertise(ctx context.Context, info *InstanceInfo) error

	// Stop withdraws the advertisement. Safe to call when nothing is
	// advertised.
	Stop() error
}

// AdvertiserConfig configures an mDNS advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to a single network interface.
	// Empty means all interfaces.
	Interface string

	// TTL for the published records. Zero means DefaultTTL.
	TTL time.Duration

	Logger *slog.Logger
}

// BrowserConfig configures an mDNS browser.
type BrowserConfig struct {
	// Interface restricts browsing to a single network interface.
	Interface string
}

// Service is a discovered emulator instance.
type Service struct {
	InstanceInfo

	Host      string
	Addresses []string
}
