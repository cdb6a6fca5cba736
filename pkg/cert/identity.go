package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 365 * 24 * time.Hour

// ErrKeyMismatch is returned when a certificate and key do not belong together.
var ErrKeyMismatch = errors.New("certificate does not match private key")

// Identity is a certificate with its private key.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateSelfSigned creates a self-signed server identity valid for hosts,
// which may be IP addresses or DNS names. "localhost" and 127.0.0.1 are
// always included.
func GenerateSelfSigned(commonName string, hosts []string, validity time.Duration) (*Identity, error) {
	if validity <= 0 {
		validity = DefaultValidity
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName, Organization: []string{"cbmock"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	for _, h := range hosts {
		if h == "" || h == "localhost" {
			continue
		}
		if ip := net.ParseIP(h); ip != nil {
			if !ip.IsUnspecified() {
				tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			}
			continue
		}
		tmpl.DNSNames = append(tmpl.DNSNames, h)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Identity{Certificate: c, PrivateKey: key}, nil
}

// LoadIdentity reads a PEM certificate and EC private key.
func LoadIdentity(certFile, keyFile string) (*Identity, error) {
	c, err := ReadCertFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFile, certFile, err)
	}
	key, err := ReadKeyFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReadFile, keyFile, err)
	}
	pub, ok := c.PublicKey.(*ecdsa.PublicKey)
	if !ok || !pub.Equal(&key.PublicKey) {
		return nil, ErrKeyMismatch
	}
	return &Identity{Certificate: c, PrivateKey: key}, nil
}

// Save writes the identity as PEM files. The key file is private to the
// owner.
func (id *Identity) Save(certFile, keyFile string) error {
	if err := WriteCertFile(certFile, id.Certificate); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFile, certFile, err)
	}
	if err := WriteKeyFile(keyFile, id.PrivateKey); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWriteFile, keyFile, err)
	}
	return nil
}

// TLSCertificate returns the identity in the form crypto/tls uses.
func (id *Identity) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{id.Certificate.Raw},
		PrivateKey:  id.PrivateKey,
		Leaf:        id.Certificate,
	}
}

// ServerConfig returns a TLS 1.2+ server configuration.
func (id *Identity) ServerConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{id.TLSCertificate()},
		MinVersion:   tls.VersionTLS12,
	}
}

// CertPool returns a pool trusting only this identity.
func (id *Identity) CertPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(id.Certificate)
	return pool
}

// ClientConfig returns a client configuration trusting this identity.
func (id *Identity) ClientConfig(serverName string) *tls.Config {
	return &tls.Config{
		RootCAs:    id.CertPool(),
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
}
