package discovery

import (
	"context"
	"time"
)

// Advertiser publishes the daemon's service.
type Advertiser interface {
	// Advertise starts advertising info, replacing any previous service.
	Advertise(ctx context.Context, info *ServiceInfo) error

	// Update replaces the TXT record of the running service.
	Update(info *ServiceInfo) error

	// Stop withdraws the service.
	Stop() error
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: DefaultTTL}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// ServiceEntry is a raw browse result, decoupled from the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     uint16
	Text     []string
	Addrs    []string
}

// ToService decodes the entry's TXT record.
func (e *ServiceEntry) ToService() (*Service, error) {
	svc, err := DecodeTXT(StringsToTXTRecords(e.Text))
	if err != nil {
		return nil, err
	}
	svc.InstanceName = e.Instance
	svc.Host = e.Host
	svc.Port = e.Port
	svc.Addresses = append([]string(nil), e.Addrs...)
	return svc, nil
}
