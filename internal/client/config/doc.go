// Package config loads runtime configuration for the shopkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or $SHOPKEEPER_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-f string   local database file
//	-r int      session restore timeout (milliseconds)
//	-t int      backend request timeout (seconds)
//
// # JSON schema
//
// Durations are strings like "300ms" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "/var/lib/shopkeeper/client.db",
//	  "restore_timeout": "300ms",
//	  "request_timeout": "10s"
//	}
package config
