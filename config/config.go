// Package config loads pool, admin and network settings from a TOML file and
// RESPOOL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/guileen/respool/pool"
)

// Default configuration values
const (
	DefaultPoolName       = "connections"
	DefaultCapacity       = 5
	DefaultAcquireTimeout = 5 * time.Second
	DefaultAdminListen    = "127.0.0.1:8080"
	DefaultDialTimeout    = 3 * time.Second
)

// Config holds all configuration for a pool process.
type Config struct {
	Pool    PoolConfig    `toml:"pool"`
	Admin   AdminConfig   `toml:"admin"`
	Network NetworkConfig `toml:"network"`
}

// PoolConfig describes one pool.
type PoolConfig struct {
	// Name labels the pool in logs, errors and metrics
	Name string `toml:"name"`
	// Capacity is the idle set bound (and the live bound when Limit is "live")
	Capacity int `toml:"capacity"`
	// OnFull is the release policy for a full idle set: discard, error, evict_oldest
	OnFull string `toml:"on_full"`
	// Limit selects what Capacity bounds: idle or live
	Limit string `toml:"limit"`
	// AcquireTimeout bounds blocking acquires, as a Go duration string
	AcquireTimeout string `toml:"acquire_timeout"`
}

// AdminConfig contains admin HTTP API settings.
type AdminConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// NetworkConfig contains settings for dialing pooled connections.
type NetworkConfig struct {
	Address     string `toml:"address"`
	DialTimeout string `toml:"dial_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pool: PoolConfig{
			Name:           DefaultPoolName,
			Capacity:       DefaultCapacity,
			OnFull:         pool.FullDiscard.String(),
			Limit:          pool.LimitIdle.String(),
			AcquireTimeout: DefaultAcquireTimeout.String(),
		},
		Admin: AdminConfig{
			Enabled: false,
			Listen:  DefaultAdminListen,
		},
		Network: NetworkConfig{
			DialTimeout: DefaultDialTimeout.String(),
		},
	}
}

// LoadFile reads configuration from a TOML file on top of the defaults.
// If the file doesn't exist, it returns the default configuration.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with RESPOOL_* environment variables. Malformed
// values are ignored.
func ApplyEnv(cfg *Config) {
	if name := os.Getenv("RESPOOL_NAME"); name != "" {
		cfg.Pool.Name = name
	}

	if capacityStr := os.Getenv("RESPOOL_CAPACITY"); capacityStr != "" {
		if capacity, err := strconv.Atoi(capacityStr); err == nil && capacity >= 0 {
			cfg.Pool.Capacity = capacity
		}
	}

	if onFull := os.Getenv("RESPOOL_ON_FULL"); onFull != "" {
		cfg.Pool.OnFull = onFull
	}

	if limit := os.Getenv("RESPOOL_LIMIT"); limit != "" {
		cfg.Pool.Limit = limit
	}

	if timeoutStr := os.Getenv("RESPOOL_ACQUIRE_TIMEOUT"); timeoutStr != "" {
		if _, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Pool.AcquireTimeout = timeoutStr
		}
	}

	if listen := os.Getenv("RESPOOL_ADMIN_LISTEN"); listen != "" {
		cfg.Admin.Listen = listen
		cfg.Admin.Enabled = true
	}

	if address := os.Getenv("RESPOOL_NETWORK_ADDRESS"); address != "" {
		cfg.Network.Address = address
	}
}

// Load builds the configuration from defaults, the optional TOML file at
// path and the environment, in that order, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting can be turned into pool options.
func (c *Config) Validate() error {
	var errs []error
	if c.Pool.Capacity < 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must not be negative, got %d", c.Pool.Capacity))
	}
	if _, err := pool.ParseFullPolicy(c.Pool.OnFull); err != nil {
		errs = append(errs, fmt.Errorf("pool.on_full: %w", err))
	}
	if _, err := pool.ParseLimitMode(c.Pool.Limit); err != nil {
		errs = append(errs, fmt.Errorf("pool.limit: %w", err))
	}
	if _, err := parseDuration(c.Pool.AcquireTimeout, DefaultAcquireTimeout); err != nil {
		errs = append(errs, fmt.Errorf("pool.acquire_timeout: %w", err))
	}
	if _, err := parseDuration(c.Network.DialTimeout, DefaultDialTimeout); err != nil {
		errs = append(errs, fmt.Errorf("network.dial_timeout: %w", err))
	}
	if c.Admin.Enabled && c.Admin.Listen == "" {
		errs = append(errs, errors.New("admin.listen is required when admin is enabled"))
	}
	return errors.Join(errs...)
}

// Options converts the pool settings into pool options. Call Validate first;
// unparsable values fall back to the defaults.
func (pc PoolConfig) Options() []pool.Option {
	onFull, _ := pool.ParseFullPolicy(pc.OnFull)
	limit, _ := pool.ParseLimitMode(pc.Limit)
	return []pool.Option{
		pool.WithName(pc.Name),
		pool.WithFullPolicy(onFull),
		pool.WithLimitMode(limit),
	}
}

// AcquireTimeoutDuration returns the parsed acquire timeout.
func (pc PoolConfig) AcquireTimeoutDuration() time.Duration {
	d, _ := parseDuration(pc.AcquireTimeout, DefaultAcquireTimeout)
	return d
}

// DialTimeoutDuration returns the parsed dial timeout.
func (nc NetworkConfig) DialTimeoutDuration() time.Duration {
	d, _ := parseDuration(nc.DialTimeout, DefaultDialTimeout)
	return d
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback, err
	}
	if d < 0 {
		return fallback, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}
