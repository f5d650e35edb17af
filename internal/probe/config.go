package probe

import (
	"sync"
	"time"
)

// DefaultTimeout is used when a probe is configured without a timeout.
const DefaultTimeout = 10 * time.Second

// Settings is the full set of fields configuring one probe.
// It is copied by value; Config hands out snapshots, never pointers.
type Settings struct {
	// EntityID identifies the monitored entity. It is also the numeric key
	// used by filter strategies.
	EntityID int `json:"entity_id" yaml:"id"`

	// Address is a host name, IP address, URL or BLE MAC address depending
	// on the endpoint type.
	Address string `json:"address" yaml:"address"`

	// Port is the target port. Zero means the protocol default.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// EndpointType selects the protocol variant (e.g. "icmp", "http").
	EndpointType string `json:"endpoint_type" yaml:"type"`

	// Timeout is the base timeout for one run before any per-variant extension.
	Timeout time.Duration `json:"timeout" yaml:"timeout,omitempty"`

	// Username and Password are optional credentials. Password doubles as
	// the BLE key for broadcast probes.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"-" yaml:"password,omitempty"`

	// Arguments holds free-form, CLI-style arguments for command-backed probes.
	Arguments string `json:"arguments,omitempty" yaml:"args,omitempty"`

	// Enabled reports whether the entity should be probed at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// SiteHash caches the last known content hash for sitehash probes.
	SiteHash string `json:"site_hash,omitempty" yaml:"siteHash,omitempty"`
}

// EffectiveTimeout returns Timeout, or DefaultTimeout when unset.
func (s Settings) EffectiveTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// Config guards the Settings of one probe.
// Many readers (scheduler, running probe, reporters) share the read lock;
// configuration updates take the write lock and replace every field at once.
type Config struct {
	mu       sync.RWMutex
	settings Settings
}

// NewConfig creates a Config holding a copy of s.
func NewConfig(s Settings) *Config {
	return &Config{settings: s}
}

// Snapshot returns a consistent copy of the current settings.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Replace swaps in a complete new set of settings.
func (c *Config) Replace(s Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
}

// Update applies fn to the settings under the write lock.
func (c *Config) Update(fn func(*Settings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.settings)
}

// SiteHash returns the cached content hash.
func (c *Config) SiteHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.SiteHash
}

// SetSiteHash stores a new content hash.
func (c *Config) SetSiteHash(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.SiteHash = hash
}
