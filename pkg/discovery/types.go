package discovery

import (
	"errors"
	"time"
)

// Service constants for mDNS.
const (
	// ServiceType is the DNS-SD service type of a device state daemon.
	ServiceType = "_devstate._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default bridge port.
	DefaultPort = 8650

	// TXTVersion is the current TXT format version.
	TXTVersion = 1

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63

	// MaxTXTValueLen is the longest value that fits a TXT string with its key.
	MaxTXTValueLen = 250
)

// TXT record keys.
const (
	TXTKeyState     = "st" // Committed state identifier
	TXTKeyStateName = "sn" // Committed state name (optional)
	TXTKeySupported = "ss" // Supported identifiers (comma-separated)
	TXTKeyVersion   = "v"  // TXT format version
)

// Timing constants.
const (
	// DefaultTTL is the DNS record TTL.
	DefaultTTL = 120 * time.Second

	// BrowseTimeout is the default browse duration.
	BrowseTimeout = 3 * time.Second
)

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required TXT record")
	ErrInvalidTXTRecord    = errors.New("invalid TXT record")
	ErrInvalidInstanceName = errors.New("invalid instance name")
	ErrNotAdvertising      = errors.New("not advertising")
)

// ServiceInfo is what a daemon advertises.
type ServiceInfo struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Port is the bridge port.
	Port uint16

	// Committed is the committed state identifier, -1 when absent.
	Committed int

	// CommittedName is the committed state name.
	CommittedName string

	// Supported are the supported state identifiers.
	Supported []int
}

// Clone returns a deep copy.
func (i *ServiceInfo) Clone() *ServiceInfo {
	cp := *i
	cp.Supported = append([]int(nil), i.Supported...)
	return &cp
}

// Service is a daemon found on the network.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string

	Committed     int
	CommittedName string
	Supported     []int
	Version       int
}
