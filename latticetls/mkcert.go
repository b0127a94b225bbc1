// Package latticetls provides an optional transport-security layer on
// top of the magic-token handshake: a node may choose to also wrap its
// connections in TLS, using either certificates supplied by the caller
// or a self-signed pair generated by this package for local testing and
// small deployments that don't already have a CA. Pass the *tls.Config
// returned by LoadConfig to lattice.WithTLSConfig to have every dial and
// accept wrapped in TLS before the handshake runs.
package latticetls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

func pemBlockForKey(priv interface{}) *pem.Block {
	switch k := priv.(type) {
	case *rsa.PrivateKey:
		return &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)}
	case *ecdsa.PrivateKey:
		b, err := x509.MarshalECPrivateKey(k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to marshal ECDSA private key: %v", err)
			os.Exit(2)
		}
		return &pem.Block{Type: "EC PRIVATE KEY", Bytes: b}
	default:
		return nil
	}
}

// CertOptions parameterizes self-signed certificate generation.
type CertOptions struct {
	Host               string
	Organization       string
	IsCA               bool
	SignWithCert       *x509.Certificate
	SignWithPrivateKey *ecdsa.PrivateKey
	ValidDuration      time.Duration
	ValidFrom          time.Time
	Addresses          []string
	CommonName         string
}

// CreateCertificate takes the given options and returns the DER bytes
// for a certificate using those options, plus the newly generated private
// key belonging to that certificate. The certificate is signed with that
// key only when SignWithCert is nil (self-signed); otherwise it is signed
// with SignWithPrivateKey.
func CreateCertificate(opt CertOptions) ([]byte, *ecdsa.PrivateKey, error) {
	if opt.SignWithCert == nil && !opt.IsCA {
		return nil, nil, errors.New("illegal options: must either be a CA or be signed")
	}
	if opt.Host == "" {
		return nil, nil, errors.New("must specify a host")
	}
	if opt.ValidDuration < time.Hour*24 {
		return nil, nil, errors.New("absurdly small expiration time")
	}
	if opt.ValidFrom.IsZero() {
		opt.ValidFrom = time.Now().Add(-time.Hour * 24)
	}

	priv, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	notAfter := opt.ValidFrom.Add(opt.ValidDuration)

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, nil, err
	}

	var dnsnames []string
	var ipaddrs []net.IP
	for _, h := range opt.Addresses {
		if ip := net.ParseIP(h); ip != nil {
			ipaddrs = append(ipaddrs, ip)
		} else {
			dnsnames = append(dnsnames, h)
		}
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{opt.Organization},
			Country:      []string{"GO"},
			Province:     []string{"lattice"},
			CommonName:   opt.CommonName,
		},
		DNSNames:              dnsnames,
		IPAddresses:           ipaddrs,
		NotBefore:             opt.ValidFrom,
		NotAfter:              notAfter,
		BasicConstraintsValid: true,
	}

	if opt.IsCA {
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
	}

	if opt.SignWithCert == nil {
		opt.SignWithCert = template
		opt.SignWithPrivateKey = priv
	}

	derBytes, err := x509.CreateCertificate(
		rand.Reader,
		template,
		opt.SignWithCert,
		&priv.PublicKey,
		opt.SignWithPrivateKey,
	)
	if err != nil {
		return nil, nil, err
	}

	return derBytes, priv, nil
}

// WriteSelfSigned generates a self-signed certificate for host/addresses
// and writes the PEM-encoded cert and key to certPath/keyPath.
func WriteSelfSigned(certPath, keyPath, host string, addresses []string, validity time.Duration) error {
	der, priv, err := CreateCertificate(CertOptions{
		Host:          host,
		Organization:  "lattice self-signed",
		IsCA:          true,
		ValidDuration: validity,
		Addresses:     addresses,
		CommonName:    host,
	})
	if err != nil {
		return fmt.Errorf("latticetls: generating certificate: %w", err)
	}

	certOut, err := os.Create(certPath)
	if err != nil {
		return fmt.Errorf("latticetls: %w", err)
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}); err != nil {
		return fmt.Errorf("latticetls: encoding certificate: %w", err)
	}

	keyOut, err := os.OpenFile(keyPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("latticetls: %w", err)
	}
	defer keyOut.Close()
	if err := pem.Encode(keyOut, pemBlockForKey(priv)); err != nil {
		return fmt.Errorf("latticetls: encoding key: %w", err)
	}

	return nil
}

// LoadConfig builds a *tls.Config from a PEM certificate/key pair, for
// callers that want to layer TLS on top of the node's own magic-token
// handshake.
func LoadConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("latticetls: loading key pair: %w", err)
	}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
	}, nil
}
