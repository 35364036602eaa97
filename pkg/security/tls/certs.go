package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// expiryWarningDays is how close to NotAfter a certificate gets before
// loading it logs a warning.
const expiryWarningDays = 30

// ValidateCertificate checks that the leaf of a key pair is currently valid.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}

	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	return ValidateX509Certificate(leaf)
}

// ValidateX509Certificate validates an x509 certificate for expiration.
func ValidateX509Certificate(cert *x509.Certificate) error {
	now := time.Now()

	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}

	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}

	return nil
}

// CheckCertificateExpiration returns the number of days until the
// certificate expires and a warning when that is under thirty days.
func CheckCertificateExpiration(cert *x509.Certificate) (daysUntilExpiry int, warning string) {
	duration := time.Until(cert.NotAfter)
	daysUntilExpiry = int(duration.Hours() / 24)

	if daysUntilExpiry < expiryWarningDays {
		warning = fmt.Sprintf("certificate expires in %d days (on %s)",
			daysUntilExpiry, cert.NotAfter.Format("2006-01-02"))
	}

	return daysUntilExpiry, warning
}
