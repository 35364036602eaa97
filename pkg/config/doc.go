// Package config provides configuration management for the webdis gateway.
//
// Configuration is read from a YAML or JSON file whose top-level keys match
// webdis.json (redis_host, http_port, acl, ...). Gateway-specific tuning lives
// in optional nested sections (pool, pubsub, server, telemetry).
//
// # Configuration Precedence
//
// Values are applied in the following order (later overrides earlier):
//
//  1. Default values (defaults.go)
//  2. Values from the configuration file
//  3. WEBDIS_* environment variables (e.g. WEBDIS_REDIS_HOST, WEBDIS_HTTP_PORT)
//  4. Validation (fails fast if invalid)
//
// # Example
//
//	{
//	  "redis_host": "127.0.0.1",
//	  "redis_port": 6379,
//	  "http_port": 7379,
//	  "websockets": true,
//	  "acl": [
//	    {"http_basic_auth": "admin:secret", "enabled": ["*"]},
//	    {"disabled": ["DEBUG", "FLUSHALL"]}
//	  ]
//	}
//
// Configuration is loaded once at startup and never reloaded; the ACL list
// and pool sizes are fixed for the life of the process.
package config
