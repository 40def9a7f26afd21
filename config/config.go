// Package config provides configuration loading and management for govlens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Resolver modes.
const (
	ResolverModeHTTP = "http"
	ResolverModeRPC  = "rpc"
)

// Config represents the complete govlens configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Resolver  ResolverConfig  `yaml:"resolver"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Platforms PlatformsConfig `yaml:"platforms"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	// Listen is the address the API binds to (default: ":8080")
	Listen string `yaml:"listen"`
}

// ResolverConfig configures the block height resolver
type ResolverConfig struct {
	// Mode selects the resolver: "http" (chain-info document) or "rpc"
	// (Ethereum JSON-RPC eth_blockNumber)
	Mode string `yaml:"mode"`
	// URL is the chain-info or JSON-RPC endpoint (empty = public default
	// for http mode; required for rpc mode)
	URL string `yaml:"url"`
}

// FetchConfig configures upstream fetching
type FetchConfig struct {
	// Timeout bounds each platform adapter's fetch; a timed-out platform
	// fails alone
	Timeout time.Duration `yaml:"timeout"`
	// RetryAttempts is the maximum attempts per upstream request
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryBackoff is the initial backoff between attempts
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// PlatformsConfig carries per-platform endpoint overrides. Empty URLs
// use each platform's public endpoint.
type PlatformsConfig struct {
	Aave     AaveConfig     `yaml:"aave"`
	Compound CompoundConfig `yaml:"compound"`
	Uniswap  UniswapConfig  `yaml:"uniswap"`
	Maker    MakerConfig    `yaml:"maker"`
}

// AaveConfig configures the Aave adapter
type AaveConfig struct {
	SubgraphURL string `yaml:"subgraph_url"`
}

// CompoundConfig configures the Compound adapter
type CompoundConfig struct {
	APIURL string `yaml:"api_url"`
}

// UniswapConfig configures the Uniswap adapter
type UniswapConfig struct {
	SubgraphURL string `yaml:"subgraph_url"`
	TitleURL    string `yaml:"title_url"`
}

// MakerConfig configures the Maker adapter
type MakerConfig struct {
	ExecutiveURL string `yaml:"executive_url"`
	PollsURL     string `yaml:"polls_url"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: ":8080",
		},
		Resolver: ResolverConfig{
			Mode: ResolverModeHTTP,
			URL:  "", // Public chain-info endpoint
		},
		Fetch: FetchConfig{
			Timeout:       20 * time.Second,
			RetryAttempts: 3,
			RetryBackoff:  500 * time.Millisecond,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	switch c.Resolver.Mode {
	case ResolverModeHTTP:
	case ResolverModeRPC:
		if c.Resolver.URL == "" {
			return fmt.Errorf("resolver.url is required in rpc mode")
		}
	default:
		return fmt.Errorf("resolver.mode must be %q or %q", ResolverModeHTTP, ResolverModeRPC)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.RetryAttempts < 1 {
		return fmt.Errorf("fetch.retry_attempts must be at least 1")
	}
	if c.Fetch.RetryBackoff <= 0 {
		return fmt.Errorf("fetch.retry_backoff must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.Listen != "" {
		c.Server.Listen = other.Server.Listen
	}

	// Resolver
	if other.Resolver.Mode != "" {
		c.Resolver.Mode = other.Resolver.Mode
	}
	if other.Resolver.URL != "" {
		c.Resolver.URL = other.Resolver.URL
	}

	// Fetch
	if other.Fetch.Timeout != 0 {
		c.Fetch.Timeout = other.Fetch.Timeout
	}
	if other.Fetch.RetryAttempts != 0 {
		c.Fetch.RetryAttempts = other.Fetch.RetryAttempts
	}
	if other.Fetch.RetryBackoff != 0 {
		c.Fetch.RetryBackoff = other.Fetch.RetryBackoff
	}

	// Platforms
	if other.Platforms.Aave.SubgraphURL != "" {
		c.Platforms.Aave.SubgraphURL = other.Platforms.Aave.SubgraphURL
	}
	if other.Platforms.Compound.APIURL != "" {
		c.Platforms.Compound.APIURL = other.Platforms.Compound.APIURL
	}
	if other.Platforms.Uniswap.SubgraphURL != "" {
		c.Platforms.Uniswap.SubgraphURL = other.Platforms.Uniswap.SubgraphURL
	}
	if other.Platforms.Uniswap.TitleURL != "" {
		c.Platforms.Uniswap.TitleURL = other.Platforms.Uniswap.TitleURL
	}
	if other.Platforms.Maker.ExecutiveURL != "" {
		c.Platforms.Maker.ExecutiveURL = other.Platforms.Maker.ExecutiveURL
	}
	if other.Platforms.Maker.PollsURL != "" {
		c.Platforms.Maker.PollsURL = other.Platforms.Maker.PollsURL
	}
}
