package rpc

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// LoadServerTLSConfig builds the server-side tls.Config from the three
// PEM files conventionally found under TLS_DIR (ca.pem, node.pem,
// node.key), requiring and verifying the caller's client certificate —
// grounded on original_source/src/chord/node.py's make_ssl_server_context.
func LoadServerTLSConfig(tlsDir string) (*tls.Config, error) {
	cert, caPool, err := loadCertAndCA(tlsDir)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// LoadClientTLSConfig builds the client-side tls.Config, presenting this
// node's own certificate and trusting only the shared CA — grounded on
// make_ssl_client_context in the same module.
func LoadClientTLSConfig(tlsDir string) (*tls.Config, error) {
	cert, caPool, err := loadCertAndCA(tlsDir)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadCertAndCA(tlsDir string) (tls.Certificate, *x509.CertPool, error) {
	certPath := filepath.Join(tlsDir, "node.pem")
	keyPath := filepath.Join(tlsDir, "node.key")
	caPath := filepath.Join(tlsDir, "ca.pem")

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("rpc: loading node certificate: %w", err)
	}

	caBytes, err := os.ReadFile(caPath)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("rpc: reading CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return tls.Certificate{}, nil, fmt.Errorf("rpc: no certificates found in %s", caPath)
	}

	return cert, pool, nil
}
