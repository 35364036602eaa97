package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/webdis/pkg/config"
)

// ClientConfig builds the TLS configuration used to dial the backend.
// It returns a nil config when ssl is disabled. The reloader is non-nil
// only when watch_certs is set; the caller owns it and must Close it.
func ClientConfig(cfg *config.SSLConfig, host string) (*tls.Config, *CertificateReloader, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}

	serverName := cfg.RedisSNI
	if serverName == "" {
		serverName = host
	}

	tlsConfig := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	roots, err := LoadCAPool(cfg.CACertBundle, cfg.PathToCerts)
	if err != nil {
		return nil, nil, err
	}
	tlsConfig.RootCAs = roots

	if cfg.ClientCert == "" {
		return tlsConfig, nil, nil
	}

	if cfg.WatchCerts {
		reloader, err := NewCertificateReloader(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, nil, err
		}
		if err := reloader.Watch(); err != nil {
			_ = reloader.Close()
			return nil, nil, err
		}
		tlsConfig.GetClientCertificate = reloader.GetClientCertificate
		return tlsConfig, reloader, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load client certificate: %w", err)
	}
	if err := ValidateCertificate(&cert); err != nil {
		return nil, nil, fmt.Errorf("client certificate validation failed: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	return tlsConfig, nil, nil
}

// LoadCAPool collects trusted roots from a PEM bundle and a directory of
// PEM files. With neither set it returns nil and the system roots apply.
// Files in dir that hold no certificates are skipped.
func LoadCAPool(bundle, dir string) (*x509.CertPool, error) {
	if bundle == "" && dir == "" {
		return nil, nil
	}

	pool := x509.NewCertPool()
	loaded := 0

	if bundle != "" {
		data, err := os.ReadFile(bundle)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle: %w", err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("no certificates found in CA bundle %s", bundle)
		}
		loaded++
	}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			if pool.AppendCertsFromPEM(data) {
				loaded++
			}
		}
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no CA certificates found in %s", dir)
	}

	return pool, nil
}
