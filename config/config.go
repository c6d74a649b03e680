// Package config loads client settings from a TOML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"hqlrpc/loadbalance"
	"hqlrpc/protocol"
	"hqlrpc/transport"
)

const (
	EnvAddr     = "HQLRPC_ADDR"
	EnvLogLevel = "HQLRPC_LOG_LEVEL"
)

const (
	TransportBuffered = "buffered"
	TransportFramed   = "framed"
)

type Config struct {
	// Addr is a fixed peer address. When empty the peer is discovered from
	// EtcdEndpoints under Service.
	Addr          string
	Service       string
	EtcdEndpoints []string
	Balancer      string
	AffinityKey   string

	Transport   string
	Compression transport.Compression

	StrictRead  bool
	StrictWrite bool
	Accelerated bool

	DialTimeout    time.Duration
	CallTimeout    time.Duration
	DialAttempts   int
	MaxFrameBytes  int
	MaxStringBytes int
	PoolSize       int

	// RateLimit is calls per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	LogLevel string
}

func Default() Config {
	return Config{
		Addr:           "127.0.0.1:15867",
		Service:        "hql",
		Balancer:       "round_robin",
		Transport:      TransportFramed,
		Compression:    transport.CompressionNone,
		StrictRead:     false,
		StrictWrite:    true,
		Accelerated:    true,
		DialTimeout:    3 * time.Second,
		CallTimeout:    30 * time.Second,
		DialAttempts:   3,
		MaxFrameBytes:  transport.DefaultMaxFrameBytes,
		MaxStringBytes: protocol.DefaultLimits().MaxStringBytes,
		PoolSize:       4,
		RateBurst:      1,
		LogLevel:       "info",
	}
}

type fileConfig struct {
	Addr           string   `toml:"addr"`
	Service        string   `toml:"service"`
	EtcdEndpoints  []string `toml:"etcd_endpoints"`
	Balancer       string   `toml:"balancer"`
	AffinityKey    string   `toml:"affinity_key"`
	Transport      string   `toml:"transport"`
	Compression    string   `toml:"compression"`
	StrictRead     bool     `toml:"strict_read"`
	StrictWrite    bool     `toml:"strict_write"`
	Accelerated    bool     `toml:"accelerated"`
	DialTimeout    string   `toml:"dial_timeout"`
	CallTimeout    string   `toml:"call_timeout"`
	DialAttempts   int      `toml:"dial_attempts"`
	MaxFrameBytes  int      `toml:"max_frame_bytes"`
	MaxStringBytes int      `toml:"max_string_bytes"`
	PoolSize       int      `toml:"pool_size"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
	LogLevel       string   `toml:"log_level"`
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		c.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("service") {
		c.Service = strings.TrimSpace(raw.Service)
	}
	if meta.IsDefined("etcd_endpoints") {
		c.EtcdEndpoints = normalizeList(raw.EtcdEndpoints)
	}
	if meta.IsDefined("balancer") {
		c.Balancer = strings.TrimSpace(raw.Balancer)
	}
	if meta.IsDefined("affinity_key") {
		c.AffinityKey = raw.AffinityKey
	}
	if meta.IsDefined("transport") {
		c.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("compression") {
		c.Compression = transport.Compression(strings.ToLower(strings.TrimSpace(raw.Compression)))
	}
	if meta.IsDefined("strict_read") {
		c.StrictRead = raw.StrictRead
	}
	if meta.IsDefined("strict_write") {
		c.StrictWrite = raw.StrictWrite
	}
	if meta.IsDefined("accelerated") {
		c.Accelerated = raw.Accelerated
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return fmt.Errorf("parse dial_timeout: %w", err)
		}
		c.DialTimeout = d
	}
	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return fmt.Errorf("parse call_timeout: %w", err)
		}
		c.CallTimeout = d
	}
	if meta.IsDefined("dial_attempts") {
		c.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("max_frame_bytes") {
		c.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("max_string_bytes") {
		c.MaxStringBytes = raw.MaxStringBytes
	}
	if meta.IsDefined("pool_size") {
		c.PoolSize = raw.PoolSize
	}
	if meta.IsDefined("rate_limit") {
		c.RateLimit = raw.RateLimit
	}
	if meta.IsDefined("rate_burst") {
		c.RateBurst = raw.RateBurst
	}
	if meta.IsDefined("log_level") {
		c.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAddr)); v != "" {
		c.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" && len(c.EtcdEndpoints) == 0 {
		errs = append(errs, errors.New("one of addr or etcd_endpoints is required"))
	}
	if c.Addr == "" && c.Service == "" {
		errs = append(errs, errors.New("service is required for discovery"))
	}
	if _, err := loadbalance.New(c.Balancer); err != nil {
		errs = append(errs, err)
	}
	switch c.Transport {
	case TransportBuffered, TransportFramed:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.Compression {
	case transport.CompressionNone, transport.CompressionSnappy:
	default:
		errs = append(errs, fmt.Errorf("unknown compression %q", c.Compression))
	}
	if c.Compression == transport.CompressionSnappy && c.Transport != TransportFramed {
		errs = append(errs, errors.New("compression requires the framed transport"))
	}
	if c.DialTimeout < 0 || c.CallTimeout < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size must be at least 1, got %d", c.PoolSize))
	}
	if c.MaxFrameBytes < 0 || c.MaxStringBytes < 0 {
		errs = append(errs, errors.New("size limits must not be negative"))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rate_limit must not be negative"))
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		errs = append(errs, errors.New("rate_burst must be at least 1 when rate_limit is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c Config) ProtocolOptions() protocol.Options {
	opts := protocol.DefaultOptions()
	opts.StrictRead = c.StrictRead
	opts.StrictWrite = c.StrictWrite
	if c.MaxStringBytes > 0 {
		opts.Limits.MaxStringBytes = c.MaxStringBytes
	}
	return opts
}

// Wrap returns the function that turns a dialed connection into the
// configured transport.
func (c Config) Wrap() func(net.Conn) transport.Transport {
	if c.Transport == TransportBuffered {
		return func(conn net.Conn) transport.Transport { return transport.NewBuffered(conn, 0) }
	}
	opts := transport.FramedOptions{MaxFrameBytes: c.MaxFrameBytes, Compression: c.Compression}
	return func(conn net.Conn) transport.Transport { return transport.NewFramed(conn, opts) }
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
