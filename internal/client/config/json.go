package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/shopkeeper/internal/flagx"
	"github.com/dmitrijs2005/shopkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	DatabasePath       string         `json:"database_path"`
	RestoreTimeout     timex.Duration `json:"restore_timeout"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the fields present in the JSON file named by
// -c/-config or $SHOPKEEPER_CONFIG. It panics on read or decode errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.RestoreTimeout.Duration > 0 {
		cfg.RestoreTimeout = jc.RestoreTimeout.Duration
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
