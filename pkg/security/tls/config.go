package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"os"

	"mercator-hq/ruler/pkg/config"
)

// Build returns the server TLS configuration described by cfg and the
// reloader serving its certificate. The certificate is loaded once before
// Build returns. Both results are nil when TLS is disabled.
func Build(cfg *config.TLSConfig, logger *slog.Logger) (*tls.Config, *CertificateReloader, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, nil, fmt.Errorf("cert_file and key_file are required when TLS is enabled")
	}

	minVersion, err := parseVersion(cfg.MinVersion)
	if err != nil {
		return nil, nil, err
	}
	suites, err := parseCipherSuites(cfg.CipherSuites)
	if err != nil {
		return nil, nil, err
	}

	reloader := NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := reloader.Load(); err != nil {
		return nil, nil, err
	}

	// #nosec G402 - MinVersion is validated (TLS 1.0/1.1 rejected)
	tlsConfig := &tls.Config{
		MinVersion:     minVersion,
		CipherSuites:   suites,
		GetCertificate: reloader.GetCertificate,
	}

	if cfg.ClientCAFile != "" {
		if err := configureClientAuth(tlsConfig, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to configure mTLS: %w", err)
		}
	}

	return tlsConfig, reloader, nil
}

func parseVersion(v string) (uint16, error) {
	switch v {
	case "1.3", "":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", v)
	}
}

// parseCipherSuites maps suite names to IDs. Only suites Go considers
// secure are accepted.
func parseCipherSuites(names []string) ([]uint16, error) {
	if len(names) == 0 {
		return nil, nil
	}

	known := make(map[string]uint16)
	for _, s := range tls.CipherSuites() {
		known[s.Name] = s.ID
	}

	suites := make([]uint16, 0, len(names))
	for _, name := range names {
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown or insecure cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	return suites, nil
}

func configureClientAuth(tlsConfig *tls.Config, cfg *config.TLSConfig) error {
	pem, err := os.ReadFile(cfg.ClientCAFile)
	if err != nil {
		return fmt.Errorf("failed to read client CA: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no certificates found in %s", cfg.ClientCAFile)
	}
	tlsConfig.ClientCAs = pool

	switch cfg.ClientAuth {
	case "verify_if_given":
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
	case "require", "":
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	default:
		return fmt.Errorf("unsupported client auth %q", cfg.ClientAuth)
	}
	return nil
}
