package tls

import (
	"crypto/tls"
	"fmt"
	"os"

	"mercator-hq/webdis/pkg/config"
)

// ServerConfig builds the listener TLS configuration from the server.tls
// section. It returns nil when TLS is disabled.
func ServerConfig(cfg *config.TLSConfig) (*tls.Config, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	if cfg.CertFile == "" {
		return nil, fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("key_file is required when TLS is enabled")
	}

	if _, err := os.Stat(cfg.CertFile); err != nil {
		return nil, fmt.Errorf("certificate file not found: %s: %w", cfg.CertFile, err)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("key file not found: %s: %w", cfg.KeyFile, err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	if err := ValidateCertificate(&cert); err != nil {
		return nil, fmt.Errorf("certificate validation failed: %w", err)
	}

	// #nosec G402 - MinVersion is validated to 1.2 or 1.3
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
		CipherSuites: parseCipherSuites(cfg.CipherSuites),
	}, nil
}

// parseTLSVersion maps "1.2" and "1.3" to their constants. Anything else,
// including the empty string, selects TLS 1.2.
func parseTLSVersion(v string) uint16 {
	switch v {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// parseCipherSuites converts cipher suite names to their IDs. Unknown names
// are skipped; an empty list yields nil so Go's defaults apply.
func parseCipherSuites(names []string) []uint16 {
	if len(names) == 0 {
		return nil
	}

	var suites []uint16
	for _, name := range names {
		if id, ok := cipherSuiteMap[name]; ok {
			suites = append(suites, id)
		}
	}

	return suites
}

// cipherSuiteMap maps cipher suite names to their tls package constants.
// Only secure cipher suites are included.
var cipherSuiteMap = map[string]uint16{
	// TLS 1.3 (always enabled, cannot be disabled)
	"TLS_AES_128_GCM_SHA256":       tls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":       tls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256": tls.TLS_CHACHA20_POLY1305_SHA256,

	// TLS 1.2
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
}
