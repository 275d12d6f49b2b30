package main

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mercator-hq/ruler/pkg/cli"
	rtls "mercator-hq/ruler/pkg/security/tls"
)

var certsFlags struct {
	hosts    string
	org      string
	validity int
	keySize  int
	output   string

	format string

	certFile string
	keyFile  string
	caFile   string
}

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage TLS certificates for the API server",
	Long: `Generate self-signed certificates for testing HTTPS, and inspect or
validate the certificates configured under server.tls.`,
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate and key",
	Long: `Generate a self-signed certificate and RSA key as cert.pem and key.pem in
the output directory. Self-signed certificates are meant for testing only.

Examples:
  ruler certs generate --host localhost,127.0.0.1
  ruler certs generate --host rules.internal --validity 90 --output certs/`,
	Args: exactArgs(0),
	RunE: generateCertificate,
}

var certsInfoCmd = &cobra.Command{
	Use:   "info <cert-file>",
	Short: "Display certificate details",
	Args:  exactArgs(1),
	RunE:  certificateInfo,
}

var certsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a certificate, its key and its chain",
	Long: `Check that a certificate is currently valid, that it matches --key when
given, and that it chains to --ca when given.`,
	Args: exactArgs(0),
	RunE: validateCertificate,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsGenerateCmd, certsInfoCmd, certsValidateCmd)

	certsGenerateCmd.Flags().StringVar(&certsFlags.hosts, "host", "localhost", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&certsFlags.org, "org", "Ruler", "organization name")
	certsGenerateCmd.Flags().IntVar(&certsFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&certsFlags.keySize, "key-size", 2048, "RSA key size (2048, 3072, 4096)")
	certsGenerateCmd.Flags().StringVar(&certsFlags.output, "output", "certs", "output directory")

	certsInfoCmd.Flags().StringVarP(&certsFlags.format, "format", "o", "text", "output format: text, json, yaml")

	certsValidateCmd.Flags().StringVar(&certsFlags.certFile, "cert", "", "certificate file (required)")
	certsValidateCmd.Flags().StringVar(&certsFlags.keyFile, "key", "", "private key file")
	certsValidateCmd.Flags().StringVar(&certsFlags.caFile, "ca", "", "CA certificate file")
}

func generateCertificate(cmd *cobra.Command, args []string) error {
	if certsFlags.validity <= 0 {
		return cli.NewUsageError("--validity must be positive")
	}
	switch certsFlags.keySize {
	case 2048, 3072, 4096:
	default:
		return cli.NewUsageError(fmt.Sprintf("invalid --key-size %d (must be 2048, 3072, or 4096)", certsFlags.keySize))
	}

	pair, err := rtls.GenerateSelfSigned(certsFlags.output, rtls.SelfSignedOptions{
		Hosts:        strings.Split(certsFlags.hosts, ","),
		Organization: certsFlags.org,
		Validity:     time.Duration(certsFlags.validity) * 24 * time.Hour,
		KeySize:      certsFlags.keySize,
	})
	if err != nil {
		return cli.NewCommandError("certs generate", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Certificate: %s\n", pair.CertFile)
	fmt.Fprintf(out, "Private key: %s\n", pair.KeyFile)
	if len(pair.DNSNames) > 0 {
		fmt.Fprintf(out, "DNS names:   %s\n", strings.Join(pair.DNSNames, ", "))
	}
	if len(pair.IPAddresses) > 0 {
		ips := make([]string, len(pair.IPAddresses))
		for i, ip := range pair.IPAddresses {
			ips[i] = ip.String()
		}
		fmt.Fprintf(out, "IPs:         %s\n", strings.Join(ips, ", "))
	}
	fmt.Fprintf(out, "Valid until: %s\n", pair.NotAfter.Format(time.RFC3339))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Self-signed certificates are for testing only. To serve HTTPS add to ruler.yaml:")
	fmt.Fprintln(out, "server:")
	fmt.Fprintln(out, "  tls:")
	fmt.Fprintln(out, "    enabled: true")
	fmt.Fprintf(out, "    cert_file: %q\n", pair.CertFile)
	fmt.Fprintf(out, "    key_file: %q\n", pair.KeyFile)
	return nil
}

// certInfo is the output of certs info.
type certInfo struct {
	File               string    `json:"file" yaml:"file"`
	Subject            string    `json:"subject" yaml:"subject"`
	Organization       []string  `json:"organization,omitempty" yaml:"organization,omitempty"`
	Issuer             string    `json:"issuer" yaml:"issuer"`
	Serial             string    `json:"serial" yaml:"serial"`
	NotBefore          time.Time `json:"not_before" yaml:"not_before"`
	NotAfter           time.Time `json:"not_after" yaml:"not_after"`
	DaysRemaining      int       `json:"days_remaining" yaml:"days_remaining"`
	Expired            bool      `json:"expired" yaml:"expired"`
	Warning            string    `json:"warning,omitempty" yaml:"warning,omitempty"`
	DNSNames           []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	IPAddresses        []string  `json:"ip_addresses,omitempty" yaml:"ip_addresses,omitempty"`
	IsCA               bool      `json:"is_ca" yaml:"is_ca"`
	SignatureAlgorithm string    `json:"signature_algorithm" yaml:"signature_algorithm"`
	PublicKeyAlgorithm string    `json:"public_key_algorithm" yaml:"public_key_algorithm"`
}

// Text implements cli.Texter.
func (c certInfo) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Certificate: %s\n\n", c.File)
	fmt.Fprintf(&b, "Subject:     %s\n", c.Subject)
	if len(c.Organization) > 0 {
		fmt.Fprintf(&b, "Organization: %s\n", strings.Join(c.Organization, ", "))
	}
	fmt.Fprintf(&b, "Issuer:      %s\n", c.Issuer)
	fmt.Fprintf(&b, "Serial:      %s\n", c.Serial)
	fmt.Fprintf(&b, "Not before:  %s\n", c.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(&b, "Not after:   %s (%s)\n", c.NotAfter.Format(time.RFC3339), humanize.Time(c.NotAfter))
	switch {
	case c.Expired:
		b.WriteString("Status:      EXPIRED\n")
	case c.Warning != "":
		fmt.Fprintf(&b, "Status:      valid, %s\n", c.Warning)
	default:
		fmt.Fprintf(&b, "Status:      valid (%d days remaining)\n", c.DaysRemaining)
	}
	for _, name := range c.DNSNames {
		fmt.Fprintf(&b, "DNS:         %s\n", name)
	}
	for _, ip := range c.IPAddresses {
		fmt.Fprintf(&b, "IP:          %s\n", ip)
	}
	fmt.Fprintf(&b, "CA:          %t\n", c.IsCA)
	fmt.Fprintf(&b, "Algorithms:  %s / %s\n", c.SignatureAlgorithm, c.PublicKeyAlgorithm)
	return b.String()
}

func newCertInfo(file string, cert *x509.Certificate, now time.Time) certInfo {
	days, warning := rtls.CheckCertificateExpiration(cert, now)
	info := certInfo{
		File:               file,
		Subject:            cert.Subject.CommonName,
		Organization:       cert.Subject.Organization,
		Issuer:             cert.Issuer.CommonName,
		Serial:             fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:          cert.NotBefore,
		NotAfter:           cert.NotAfter,
		DaysRemaining:      days,
		Expired:            now.After(cert.NotAfter),
		Warning:            warning,
		DNSNames:           cert.DNSNames,
		IsCA:               cert.IsCA,
		SignatureAlgorithm: cert.SignatureAlgorithm.String(),
		PublicKeyAlgorithm: cert.PublicKeyAlgorithm.String(),
	}
	if info.Expired {
		info.DaysRemaining = 0
		info.Warning = ""
	}
	for _, ip := range cert.IPAddresses {
		info.IPAddresses = append(info.IPAddresses, ip.String())
	}
	return info
}

func certificateInfo(cmd *cobra.Command, args []string) error {
	_, formatter, err := newFormatter(certsFlags.format)
	if err != nil {
		return err
	}
	cert, err := rtls.LoadCertificateFile(args[0])
	if err != nil {
		return cli.NewCommandError("certs info", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), newCertInfo(args[0], cert, time.Now()))
}

func validateCertificate(cmd *cobra.Command, args []string) error {
	if certsFlags.certFile == "" {
		return cli.NewUsageError("--cert must be specified")
	}

	cert, err := rtls.LoadCertificateFile(certsFlags.certFile)
	if err != nil {
		return cli.NewCommandError("certs validate", err)
	}

	out := cmd.OutOrStdout()
	failed := false
	report := func(err error, ok string) {
		if err != nil {
			failed = true
			fmt.Fprintf(out, "FAIL %v\n", err)
			return
		}
		fmt.Fprintf(out, "ok   %s\n", ok)
	}

	if certsFlags.keyFile != "" {
		_, err := tls.LoadX509KeyPair(certsFlags.certFile, certsFlags.keyFile)
		if err != nil {
			err = fmt.Errorf("certificate and key do not match: %w", err)
		}
		report(err, "certificate and key match")
	}
	if certsFlags.caFile != "" {
		report(rtls.VerifyChain(cert, certsFlags.caFile), "certificate chains to "+certsFlags.caFile)
	}

	now := time.Now()
	report(rtls.ValidateX509Certificate(cert, now), "certificate valid until "+cert.NotAfter.Format("2006-01-02"))
	if _, warning := rtls.CheckCertificateExpiration(cert, now); warning != "" && now.Before(cert.NotAfter) {
		fmt.Fprintf(out, "warn %s\n", warning)
	}

	if failed {
		return errReported
	}
	return nil
}
