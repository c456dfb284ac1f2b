package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// ServiceType is the DNS-SD service type of a mutation bridge.
	ServiceType = "_observe._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// InstancePrefix starts every bridge instance name.
	InstancePrefix = "observe-"

	// MaxInstanceNameLen is the DNS-SD limit for an instance label.
	MaxInstanceNameLen = 63

	// DefaultTTL is the record TTL used when none is configured.
	DefaultTTL = 120 * time.Second
)

// TXT record keys.
const (
	TXTKeyPath    = "path"
	TXTKeyID      = "id"
	TXTKeyFormats = "fmt"
	TXTKeyName    = "name"
)

// DefaultFormats are the frame formats a bridge accepts when the fmt
// record is absent.
var DefaultFormats = []string{"cbor", "json"}

// Discovery errors.
var (
	ErrMissingRequired     = errors.New("missing required field")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidPath         = errors.New("bridge path must start with /")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotAdvertising      = errors.New("not advertising")
)

// BridgeInfo describes a bridge to advertise.
type BridgeInfo struct {
	ObservationID string
	Port          uint16
	Path          string
	Formats       []string
	Name          string
}

// InstanceName returns the DNS-SD instance name for the bridge.
func (b *BridgeInfo) InstanceName() string {
	id := strings.ReplaceAll(b.ObservationID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return InstancePrefix + id
}

// Validate checks that the info can be advertised.
func (b *BridgeInfo) Validate() error {
	if b.ObservationID == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyID)
	}
	if b.Port == 0 {
		return ErrInvalidPort
	}
	if !strings.HasPrefix(b.Path, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, b.Path)
	}
	return ValidateInstanceName(b.InstanceName())
}

// BridgeService is a bridge found by browsing.
type BridgeService struct {
	InstanceName  string
	Host          string
	Port          uint16
	Addresses     []string
	Path          string
	ObservationID string
	Formats       []string
	Name          string
}

// URL returns the WebSocket URL of the bridge on its first address, or on
// its host name when no address is known.
func (s *BridgeService) URL() string {
	host := strings.TrimSuffix(s.Host, ".")
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(int(s.Port))) + s.Path
}

// Supports reports whether the bridge accepts frames in format.
func (s *BridgeService) Supports(format string) bool {
	for _, f := range s.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrMissingRequired)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
