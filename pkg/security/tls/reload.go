package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CertificateReloader keeps a client key pair in memory and swaps it when
// the files on disk change. The handshake reads the current pair through
// GetClientCertificate, so renewals take effect on the next dial.
type CertificateReloader struct {
	certFile string
	keyFile  string

	mu   sync.RWMutex
	cert *tls.Certificate

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCertificateReloader loads the key pair once. Call Watch to follow
// changes on disk.
func NewCertificateReloader(certFile, keyFile string) (*CertificateReloader, error) {
	r := &CertificateReloader{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		stopCh:   make(chan struct{}),
	}

	if err := r.reload(); err != nil {
		return nil, err
	}
	r.logCertificateInfo()

	return r, nil
}

// Watch starts an fsnotify watcher on the directories holding the pair.
// Directories are watched rather than files so that atomic rename-based
// rotation is seen.
func (r *CertificateReloader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create certificate watcher: %w", err)
	}

	dirs := map[string]struct{}{
		filepath.Dir(r.certFile): {},
		filepath.Dir(r.keyFile):  {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	r.watcher = watcher
	go r.watchLoop()

	return nil
}

// Close stops the watcher. It is safe to call more than once.
func (r *CertificateReloader) Close() error {
	var err error
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.watcher != nil {
			err = r.watcher.Close()
		}
	})
	return err
}

func (r *CertificateReloader) watchLoop() {
	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}

			name := filepath.Clean(event.Name)
			if name != r.certFile && name != r.keyFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			slog.Debug("certificate file changed",
				"file", filepath.Base(name),
				"op", event.Op.String(),
			)

			// The pair is usually rewritten one file at a time; a mismatch
			// here is expected and resolves on the next event.
			if err := r.reload(); err != nil {
				slog.Warn("failed to reload client certificate",
					"error", err,
					"cert_file", r.certFile,
					"key_file", r.keyFile,
				)
				continue
			}
			slog.Info("client certificate reloaded", "cert_file", r.certFile)
			r.logCertificateInfo()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("certificate watcher error", "error", err)

		case <-r.stopCh:
			return
		}
	}
}

func (r *CertificateReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load client certificate: %w", err)
	}

	if err := ValidateCertificate(&cert); err != nil {
		return err
	}

	r.mu.Lock()
	r.cert = &cert
	r.mu.Unlock()

	return nil
}

// GetCertificate returns the current key pair.
func (r *CertificateReloader) GetCertificate() *tls.Certificate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert
}

// GetClientCertificate matches tls.Config.GetClientCertificate.
func (r *CertificateReloader) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return r.GetCertificate(), nil
}

func (r *CertificateReloader) logCertificateInfo() {
	cert := r.GetCertificate()
	if cert == nil || len(cert.Certificate) == 0 {
		return
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return
	}

	days, warning := CheckCertificateExpiration(leaf)
	if warning != "" {
		slog.Warn("client certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}

	slog.Info("client certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
}
