package config

import "time"

// Config holds runtime settings for the shopkeeper client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - DatabasePath: local SQLite file holding the persisted session.
//   - RestoreTimeout: upper bound for reading the persisted session at start.
//   - RequestTimeout: upper bound for a single backend call.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	RestoreTimeout     time.Duration
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "shopkeeper.db"
	c.RestoreTimeout = 300 * time.Millisecond
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
