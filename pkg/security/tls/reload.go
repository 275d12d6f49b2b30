package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// CertificateReloader serves a certificate and reloads it when its files
// change, so renewed certificates are used without a restart.
type CertificateReloader struct {
	certFile string
	keyFile  string
	interval time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	leaf     *x509.Certificate
	certTime time.Time
	keyTime  time.Time
}

// NewCertificateReloader creates a reloader that checks the files every
// interval. A non-positive interval disables reloading.
func NewCertificateReloader(certFile, keyFile string, interval time.Duration, logger *slog.Logger) *CertificateReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertificateReloader{
		certFile: certFile,
		keyFile:  keyFile,
		interval: interval,
		logger:   logger.With("component", "tls", "cert_file", certFile),
	}
}

// Load reads the certificate and key from disk and makes them current.
// The current certificate is kept when loading fails.
func (r *CertificateReloader) Load() error {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return fmt.Errorf("certificate file: %w", err)
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return fmt.Errorf("key file: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	leaf, err := ValidateCertificate(&cert)
	if err != nil {
		return fmt.Errorf("certificate validation failed: %w", err)
	}

	r.mu.Lock()
	r.cert = &cert
	r.leaf = leaf
	r.certTime = certInfo.ModTime()
	r.keyTime = keyInfo.ModTime()
	r.mu.Unlock()

	r.logCertificate(leaf)
	return nil
}

// Start checks the files for changes until ctx is cancelled.
func (r *CertificateReloader) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	go r.reloadLoop(ctx)
}

func (r *CertificateReloader) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			if err := r.Load(); err != nil {
				r.logger.Error("failed to reload certificate, keeping current one", "error", err)
				continue
			}
			r.logger.Info("certificate reloaded")
		case <-ctx.Done():
			return
		}
	}
}

// changed reports whether either file was modified since the last load.
func (r *CertificateReloader) changed() bool {
	certInfo, err := os.Stat(r.certFile)
	if err != nil {
		return false
	}
	keyInfo, err := os.Stat(r.keyFile)
	if err != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return certInfo.ModTime().After(r.certTime) || keyInfo.ModTime().After(r.keyTime)
}

// GetCertificate returns the current certificate. It has the signature of
// tls.Config.GetCertificate.
func (r *CertificateReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cert == nil {
		return nil, errors.New("no certificate loaded")
	}
	return r.cert, nil
}

// NotAfter returns when the current certificate expires.
func (r *CertificateReloader) NotAfter() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.leaf == nil {
		return time.Time{}
	}
	return r.leaf.NotAfter
}

// Check is a health check failing once the current certificate is no longer
// valid.
func (r *CertificateReloader) Check(ctx context.Context) error {
	r.mu.RLock()
	leaf := r.leaf
	r.mu.RUnlock()

	if leaf == nil {
		return errors.New("no certificate loaded")
	}
	return ValidateX509Certificate(leaf, time.Now())
}

func (r *CertificateReloader) logCertificate(leaf *x509.Certificate) {
	days, warning := CheckCertificateExpiration(leaf, time.Now())
	if warning != "" {
		r.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
		return
	}
	r.logger.Info("certificate loaded",
		"subject", leaf.Subject.CommonName,
		"issuer", leaf.Issuer.CommonName,
		"expires_in_days", days,
		"expires_at", leaf.NotAfter.Format(time.RFC3339),
	)
}
