package smtpclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/relaytest"
)

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test.example.com"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"test.example.com", "localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	return tls.Certificate{
		Certificate: [][]byte{certBytes},
		PrivateKey:  key,
	}
}

func testClientID(t *testing.T) smtpkit.ClientID {
	t.Helper()
	id, err := smtpkit.NewClientIDFQDN("test.local.example")
	if err != nil {
		t.Fatalf("NewClientIDFQDN: %v", err)
	}
	return id
}

func TestSTARTTLS_Opportunistic(t *testing.T) {
	cert := generateTestCert(t)
	addr, stop := startRelay(t, relaytest.WithTLSConfig(&tls.Config{Certificates: []tls.Certificate{cert}}))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	security := smtpkit.NewSecurity(smtpkit.SecurityOpportunistic, &tls.Config{InsecureSkipVerify: true})
	c, err := Dial(ctx, addr, testClientID(t), security, nil, &net.Dialer{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if !c.IsTLS() {
		t.Fatal("should be TLS after opportunistic STARTTLS")
	}
	// Extensions must be the ones re-negotiated over the encrypted channel,
	// and STARTTLS itself must no longer be advertised.
	if !c.Extensions().Has(smtpkit.ExtPIPELINING) {
		t.Error("PIPELINING should still be advertised after STARTTLS")
	}
	if c.Extensions().Has(smtpkit.ExtSTARTTLS) {
		t.Error("STARTTLS should not be advertised once already on TLS")
	}
}

func TestSTARTTLS_NotAdvertisedButRequired(t *testing.T) {
	// Relay has no TLS config at all: STARTTLS is never advertised.
	addr, stop := startRelay(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	security := smtpkit.NewSecurity(smtpkit.SecurityRequired, &tls.Config{InsecureSkipVerify: true})
	c, err := Dial(ctx, addr, testClientID(t), security, nil, &net.Dialer{})
	if err == nil {
		c.Close()
		t.Fatal("expected Dial to fail when STARTTLS is required but not advertised")
	}

	kerr, ok := err.(*smtpkit.Error)
	if !ok {
		t.Fatalf("err = %T, want *smtpkit.Error", err)
	}
	if kerr.Kind != smtpkit.ErrKindTLSRequired {
		t.Errorf("Kind = %v, want ErrKindTLSRequired", kerr.Kind)
	}
}

func TestSTARTTLS_NotAdvertisedOpportunisticContinuesPlaintext(t *testing.T) {
	addr, stop := startRelay(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	security := smtpkit.NewSecurity(smtpkit.SecurityOpportunistic, nil)
	c, err := Dial(ctx, addr, testClientID(t), security, nil, &net.Dialer{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if c.IsTLS() {
		t.Fatal("should not be TLS when STARTTLS was never advertised")
	}
}

func TestSTARTTLS_AlreadyTLS(t *testing.T) {
	cert := generateTestCert(t)
	addr, stop := startRelay(t, relaytest.WithTLSConfig(&tls.Config{Certificates: []tls.Certificate{cert}}))
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	security := smtpkit.NewSecurity(smtpkit.SecurityOpportunistic, &tls.Config{InsecureSkipVerify: true})
	c, err := Dial(ctx, addr, testClientID(t), security, nil, &net.Dialer{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if !c.IsTLS() {
		t.Fatal("Dial should have upgraded to TLS")
	}

	// A second STARTTLS on an already-encrypted connection must be rejected
	// with a 503 bad-sequence reply (RFC 3207 §4.2).
	if err := c.startTLS(ctx, &tls.Config{InsecureSkipVerify: true}); err == nil {
		t.Fatal("expected second STARTTLS to fail")
	}
}
