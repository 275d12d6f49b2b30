package tls

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SelfSignedOptions describes a self-signed server certificate.
type SelfSignedOptions struct {
	Hosts        []string
	Organization string
	Validity     time.Duration
	KeySize      int
}

// GeneratedPair is where GenerateSelfSigned wrote the certificate and key.
type GeneratedPair struct {
	CertFile    string
	KeyFile     string
	DNSNames    []string
	IPAddresses []net.IP
	NotBefore   time.Time
	NotAfter    time.Time
}

// GenerateSelfSigned creates an RSA key and a self-signed certificate for
// opts.Hosts and writes them to dir as cert.pem and key.pem. The key file is
// written with mode 0600.
func GenerateSelfSigned(dir string, opts SelfSignedOptions) (*GeneratedPair, error) {
	switch opts.KeySize {
	case 2048, 3072, 4096:
	default:
		return nil, fmt.Errorf("invalid key size %d (must be 2048, 3072, or 4096)", opts.KeySize)
	}
	if opts.Validity <= 0 {
		return nil, fmt.Errorf("validity must be positive")
	}

	var dnsNames []string
	var ips []net.IP
	for _, host := range opts.Hosts {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		if ip := net.ParseIP(host); ip != nil {
			ips = append(ips, ip)
		} else {
			dnsNames = append(dnsNames, host)
		}
	}
	if len(dnsNames) == 0 && len(ips) == 0 {
		return nil, fmt.Errorf("at least one host is required")
	}
	commonName := strings.TrimSpace(opts.Hosts[0])
	if commonName == "" {
		if len(dnsNames) > 0 {
			commonName = dnsNames[0]
		} else {
			commonName = ips[0].String()
		}
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	notAfter := notBefore.Add(opts.Validity)
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{opts.Organization},
			CommonName:   commonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	pair := &GeneratedPair{
		CertFile:    filepath.Join(dir, "cert.pem"),
		KeyFile:     filepath.Join(dir, "key.pem"),
		DNSNames:    dnsNames,
		IPAddresses: ips,
		NotBefore:   notBefore,
		NotAfter:    notAfter,
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(pair.CertFile, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write certificate: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(pair.KeyFile, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	return pair, nil
}

// LoadCertificateFile reads the first certificate of a PEM file.
func LoadCertificateFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%s: no PEM certificate found", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

// VerifyChain checks cert against the CA certificates in caFile.
func VerifyChain(cert *x509.Certificate, caFile string) error {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return fmt.Errorf("%s: no certificates found", caFile)
	}
	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("chain verification failed: %w", err)
	}
	return nil
}
