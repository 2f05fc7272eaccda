// Package signer implements the Signer component (spec §4.7): given a
// subject, a re-readable CSR byte source, and CA settings, it produces
// a signed certificate, writes it to the signed directory, and updates
// the inventory.
package signer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"time"

	"github.com/cloudflare/cfssl/helpers"
	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/extensions"
	"github.com/puppetlabs/puppetserver-ca-core/inventory"
	"github.com/puppetlabs/puppetserver-ca-core/layout"
	"github.com/puppetlabs/puppetserver-ca-core/serial"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
)

var tracer = otel.Tracer("github.com/puppetlabs/puppetserver-ca-core/signer")

// Metrics holds the Prometheus counters the signer updates.
type Metrics struct {
	signed *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics for the given registerer.
func NewMetrics(stats prometheus.Registerer) *Metrics {
	signed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ca_certificates_signed_total",
		Help: "Number of certificates signed, by outcome",
	}, []string{"outcome"})
	stats.MustRegister(signed)
	return &Metrics{signed: signed}
}

func (m *Metrics) note(outcome string) {
	if m != nil {
		m.signed.WithLabelValues(outcome).Inc()
	}
}

// Result describes a successfully signed certificate.
type Result struct {
	Certificate *x509.Certificate
	PEM         []byte
	SerialHex   string
}

// ValidityWindow computes the not-before/not-after pair from spec
// §4.6: not-before is one day in the past (tolerating clock skew
// between the CA and its agents), not-after is ca_ttl seconds out.
func ValidityWindow(clk clock.Clock, caTTLSeconds int) (notBefore, notAfter time.Time) {
	now := clk.Now()
	notBefore = now.Add(-24 * time.Hour)
	notAfter = now.Add(time.Duration(caTTLSeconds) * time.Second)
	return notBefore, notAfter
}

// Sign parses csrPEM, allocates the next serial number, composes the
// extension set, signs a new certificate with the CA's key, appends an
// inventory record, and writes the PEM to signeddir/{subject}.pem,
// overwriting any existing file. Inventory is written before the PEM,
// matching the legacy order: if the PEM write subsequently fails the
// inventory may contain an orphan line, which is an accepted
// limitation of the audit-log model (spec §4.7, §9 Open Question iii).
func Sign(ctx context.Context, clk clock.Clock, m *Metrics, s settings.CaSettings, subject string, csrPEM []byte) (*Result, error) {
	ctx, span := tracer.Start(ctx, "signer.Sign")
	defer span.End()
	_ = ctx

	if err := layout.ValidateSubject(subject); err != nil {
		m.note("malformed")
		return nil, err
	}

	csr, err := ParseCSR(csrPEM)
	if err != nil {
		m.note("malformed")
		return nil, err
	}
	if err := csr.CheckSignature(); err != nil {
		m.note("malformed")
		return nil, caerrors.MalformedCsrError("CSR signature verification failed: %s", err)
	}

	caCert, err := loadCACert(s.CACert)
	if err != nil {
		m.note("crypto_failure")
		return nil, err
	}
	caKey, err := loadCAKey(s.CAKey)
	if err != nil {
		m.note("crypto_failure")
		return nil, err
	}

	notBefore, notAfter := ValidityWindow(clk, s.CATTL)

	serialInt, err := serial.Next(ctx, s.Serial, nil)
	if err != nil {
		m.note("io_failure")
		return nil, err
	}
	serialHex := serial.Format(serialInt)

	exts, err := extensions.Build(caKey.Public(), csr.PublicKey, csr.Extensions)
	if err != nil {
		m.note("crypto_failure")
		return nil, caerrors.CryptoFailureError("building extensions: %s", err)
	}

	template := &x509.Certificate{
		SerialNumber:    new(big.Int).SetInt64(serialInt),
		Subject:         pkix.Name{CommonName: subject},
		Issuer:          caCert.Subject,
		NotBefore:       notBefore,
		NotAfter:        notAfter,
		ExtraExtensions: exts,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, csr.PublicKey, caKey)
	if err != nil {
		m.note("crypto_failure")
		return nil, caerrors.CryptoFailureError("signing certificate for %s: %s", subject, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		m.note("crypto_failure")
		return nil, caerrors.CryptoFailureError("parsing newly signed certificate for %s: %s", subject, err)
	}

	if err := inventory.Append(s.CertInventory, serialHex, notBefore, notAfter, cert.Subject.String()); err != nil {
		m.note("io_failure")
		return nil, caerrors.IoFailureError("appending inventory record for %s: %s", subject, err)
	}

	certPEM := helpers.EncodeCertificatePEM(cert)
	if err := os.WriteFile(layout.PathToCert(s.SignedDir, subject), certPEM, 0644); err != nil {
		m.note("io_failure")
		return nil, caerrors.IoFailureError("writing signed certificate for %s: %s", subject, err)
	}

	m.note("signed")
	return &Result{Certificate: cert, PEM: certPEM, SerialHex: serialHex}, nil
}

// ParseCSR decodes a PEM-encoded PKCS#10 certificate signing request.
func ParseCSR(csrPEM []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(csrPEM)
	if block == nil {
		return nil, caerrors.MalformedCsrError("CSR does not contain a PEM block")
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		return nil, caerrors.MalformedCsrError("parsing CSR DER: %s", err)
	}
	return csr, nil
}

func loadCACert(path string) (*x509.Certificate, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, caerrors.IoFailureError("reading CA certificate %s: %s", path, err)
	}
	cert, err := helpers.ParseCertificatePEM(pemBytes)
	if err != nil {
		return nil, caerrors.CryptoFailureError("parsing CA certificate %s: %s", path, err)
	}
	return cert, nil
}

func loadCAKey(path string) (crypto.Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, caerrors.IoFailureError("reading CA private key %s: %s", path, err)
	}
	key, err := helpers.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, caerrors.CryptoFailureError("parsing CA private key %s: %s", path, err)
	}
	return key, nil
}
