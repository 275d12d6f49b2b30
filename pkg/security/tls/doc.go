/*
Package tls builds the HTTPS configuration of the API server.

Build turns the server.tls section of the configuration into a crypto/tls
configuration. Certificates are served through a CertificateReloader, so a
renewed certificate is picked up without restarting the server:

	tlsConfig, reloader, err := tls.Build(&cfg.Server.TLS, logger)
	if err != nil {
		return err
	}
	if tlsConfig != nil {
		reloader.Start(ctx)
		health.RegisterCheck("tls", reloader.Check)
		srv.WithTLS(tlsConfig)
	}

Setting client_ca_file turns on mutual TLS: clients must present a
certificate signed by one of the listed CAs (or, with client_auth
"verify_if_given", may present none).

GenerateSelfSigned writes a throwaway certificate and key for testing, and
LoadCertificateFile and VerifyChain back the ruler certs command.
*/
package tls
