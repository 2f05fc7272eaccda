// Package bootstrap implements the Initialization Orchestrator (spec
// §4.10): it verifies the CA is either fully provisioned or entirely
// absent, and creates the CA and master artifacts a fresh install
// needs.
package bootstrap

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudflare/cfssl/helpers"
	"github.com/jmhodges/clock"
	"go.opentelemetry.io/otel"

	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/calog"
	"github.com/puppetlabs/puppetserver-ca-core/inventory"
	"github.com/puppetlabs/puppetserver-ca-core/layout"
	"github.com/puppetlabs/puppetserver-ca-core/serial"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
)

var tracer = otel.Tracer("github.com/puppetlabs/puppetserver-ca-core/bootstrap")

// DefaultKeyBits is used when Initialize is called with keyBits <= 0.
const DefaultKeyBits = 4096

// partition splits paths into those that currently exist and those
// that do not.
func partition(paths []string) (existing, missing []string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		} else {
			missing = append(missing, p)
		}
	}
	return existing, missing
}

// allExist reports whether every path in paths currently exists.
func allExist(paths []string) bool {
	_, missing := partition(paths)
	return len(missing) == 0
}

// Initialize runs the full orchestration algorithm from spec §4.10: it
// bootstraps the CA only when none of its artifacts exist (refusing a
// PartialState otherwise). The master is skipped when all of its
// artifacts exist; otherwise it is (re)bootstrapped in full, overwriting
// whatever is present, since a half-provisioned master can simply be
// regenerated.
func Initialize(ctx context.Context, clk clock.Clock, log calog.Logger, ca settings.CaSettings, master settings.MasterSettings, masterCertname string, keyBits int) error {
	ctx, span := tracer.Start(ctx, "bootstrap.Initialize")
	defer span.End()

	if keyBits <= 0 {
		keyBits = DefaultKeyBits
	}

	caPaths := ca.ArtifactPaths()
	existing, missing := partition(caPaths)

	switch {
	case len(missing) == 0:
		log.Info("CA already initialized, skipping CA bootstrap")
	case len(existing) == 0:
		if err := bootstrapCA(ctx, clk, log, ca, keyBits); err != nil {
			return err
		}
	default:
		return caerrors.PartialStateError(existing, missing)
	}

	if allExist(master.ArtifactPaths()) {
		log.Info("master already initialized, skipping master bootstrap")
		return nil
	}
	return bootstrapMaster(ctx, clk, log, ca, master, masterCertname, keyBits)
}

// RefreshCRL regenerates the CA's CRL with a fresh thisUpdate/
// nextUpdate window, carrying forward zero revocations -- revocation
// itself remains out of scope (spec §1 Non-goals); this only keeps the
// CRL's validity window from lapsing.
func RefreshCRL(ctx context.Context, clk clock.Clock, ca settings.CaSettings) error {
	ctx, span := tracer.Start(ctx, "bootstrap.RefreshCRL")
	defer span.End()
	_ = ctx

	caCertBytes, err := os.ReadFile(ca.CACert)
	if err != nil {
		return caerrors.IoFailureError("reading CA certificate %s: %s", ca.CACert, err)
	}
	caCert, err := helpers.ParseCertificatePEM(caCertBytes)
	if err != nil {
		return caerrors.CryptoFailureError("parsing CA certificate %s: %s", ca.CACert, err)
	}
	caKeyBytes, err := os.ReadFile(ca.CAKey)
	if err != nil {
		return caerrors.IoFailureError("reading CA private key %s: %s", ca.CAKey, err)
	}
	caKey, err := helpers.ParsePrivateKeyPEM(caKeyBytes)
	if err != nil {
		return caerrors.CryptoFailureError("parsing CA private key %s: %s", ca.CAKey, err)
	}

	notBefore, notAfter := validityWindow(clk, ca.CATTL)
	crlTemplate := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: notBefore,
		NextUpdate: notAfter,
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, crlTemplate, caCert, caKey)
	if err != nil {
		return caerrors.CryptoFailureError("refreshing CRL: %s", err)
	}
	return writePEM(ca.CACRL, "X509 CRL", crlDER)
}

func mkdirAllParents(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return caerrors.IoFailureError("creating parent directory of %s: %s", p, err)
		}
	}
	return nil
}

func validityWindow(clk clock.Clock, caTTLSeconds int) (time.Time, time.Time) {
	now := clk.Now()
	return now.Add(-24 * time.Hour), now.Add(time.Duration(caTTLSeconds) * time.Second)
}

// bootstrapCA implements spec §4.10's "CA bootstrap" paragraph: fresh
// directories, a 0001 serial file, a self-signed root cert, and an
// empty CRL. The root cert carries none of the extensions.Build set;
// its template sets only IsCA/BasicConstraintsValid/KeyUsage (CertSign|
// CRLSign), so the standard library emits the CA basic-constraints and
// key-usage extensions (and derives a subject key identifier) for it.
func bootstrapCA(ctx context.Context, clk clock.Clock, log calog.Logger, ca settings.CaSettings, keyBits int) error {
	if err := mkdirAllParents(ca.ArtifactPaths()...); err != nil {
		return err
	}
	if err := os.MkdirAll(ca.CSRDir, 0755); err != nil {
		return caerrors.IoFailureError("creating CSR directory %s: %s", ca.CSRDir, err)
	}
	if err := os.MkdirAll(ca.SignedDir, 0755); err != nil {
		return caerrors.IoFailureError("creating signed directory %s: %s", ca.SignedDir, err)
	}
	if err := serial.Initialize(ca.Serial); err != nil {
		return err
	}
	if err := inventory.Initialize(ca.CertInventory); err != nil {
		return caerrors.IoFailureError("creating inventory file %s: %s", ca.CertInventory, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return caerrors.CryptoFailureError("generating CA keypair: %s", err)
	}

	serialInt, err := serial.Next(ctx, ca.Serial, nil)
	if err != nil {
		return err
	}
	notBefore, notAfter := validityWindow(clk, ca.CATTL)

	subject := pkix.Name{CommonName: ca.CAName}
	template := &x509.Certificate{
		SerialNumber:          new(big.Int).SetInt64(serialInt),
		Subject:               subject,
		Issuer:                subject,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return caerrors.CryptoFailureError("self-signing CA certificate: %s", err)
	}
	caCert, err := x509.ParseCertificate(der)
	if err != nil {
		return caerrors.CryptoFailureError("parsing newly created CA certificate: %s", err)
	}

	crlTemplate := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: notBefore,
		NextUpdate: notAfter,
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, crlTemplate, caCert, key)
	if err != nil {
		return caerrors.CryptoFailureError("creating initial CRL: %s", err)
	}

	if err := inventory.Append(ca.CertInventory, serial.Format(serialInt), notBefore, notAfter, caCert.Subject.String()); err != nil {
		return caerrors.IoFailureError("appending inventory record for CA certificate: %s", err)
	}

	if err := writePEM(ca.CAPub, "PUBLIC KEY", mustMarshalPKIXPublicKey(&key.PublicKey)); err != nil {
		return err
	}
	if err := writePEM(ca.CAKey, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)); err != nil {
		return err
	}
	if err := os.WriteFile(ca.CACert, helpers.EncodeCertificatePEM(caCert), 0644); err != nil {
		return caerrors.IoFailureError("writing CA certificate %s: %s", ca.CACert, err)
	}
	if err := writePEM(ca.CACRL, "X509 CRL", crlDER); err != nil {
		return err
	}

	log.Infof("bootstrapped CA %q with serial %s", ca.CAName, serial.Format(serialInt))
	return nil
}

// bootstrapMaster implements spec §4.10's "Master bootstrap" paragraph.
func bootstrapMaster(ctx context.Context, clk clock.Clock, log calog.Logger, ca settings.CaSettings, master settings.MasterSettings, masterCertname string, keyBits int) error {
	if err := mkdirAllParents(master.ArtifactPaths()...); err != nil {
		return err
	}
	if err := os.MkdirAll(master.CertDir, 0755); err != nil {
		return caerrors.IoFailureError("creating certdir %s: %s", master.CertDir, err)
	}
	if err := os.MkdirAll(master.RequestDir, 0755); err != nil {
		return caerrors.IoFailureError("creating requestdir %s: %s", master.RequestDir, err)
	}

	caCertBytes, err := os.ReadFile(ca.CACert)
	if err != nil {
		return caerrors.IoFailureError("reading CA certificate %s: %s", ca.CACert, err)
	}
	caCert, err := helpers.ParseCertificatePEM(caCertBytes)
	if err != nil {
		return caerrors.CryptoFailureError("parsing CA certificate %s: %s", ca.CACert, err)
	}
	caKeyBytes, err := os.ReadFile(ca.CAKey)
	if err != nil {
		return caerrors.IoFailureError("reading CA private key %s: %s", ca.CAKey, err)
	}
	caKey, err := helpers.ParsePrivateKeyPEM(caKeyBytes)
	if err != nil {
		return caerrors.CryptoFailureError("parsing CA private key %s: %s", ca.CAKey, err)
	}

	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return caerrors.CryptoFailureError("generating master keypair: %s", err)
	}

	serialInt, err := serial.Next(ctx, ca.Serial, nil)
	if err != nil {
		return err
	}
	notBefore, notAfter := validityWindow(clk, ca.CATTL)

	altNames := master.AltNames()
	var dnsNames []string
	if len(altNames) > 0 {
		dnsNames = append(dnsNames, altNames...)
		dnsNames = append(dnsNames, masterCertname)
	}

	template := &x509.Certificate{
		SerialNumber: new(big.Int).SetInt64(serialInt),
		Subject:      pkix.Name{CommonName: masterCertname},
		Issuer:       caCert.Subject,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     dnsNames,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, caCert, &key.PublicKey, caKey)
	if err != nil {
		return caerrors.CryptoFailureError("signing master certificate: %s", err)
	}
	masterCert, err := x509.ParseCertificate(der)
	if err != nil {
		return caerrors.CryptoFailureError("parsing newly signed master certificate: %s", err)
	}
	certPEM := helpers.EncodeCertificatePEM(masterCert)

	if err := inventory.Append(ca.CertInventory, serial.Format(serialInt), notBefore, notAfter, masterCert.Subject.String()); err != nil {
		return caerrors.IoFailureError("appending inventory record for %s: %s", masterCertname, err)
	}

	if err := writePEM(master.HostPubKey, "PUBLIC KEY", mustMarshalPKIXPublicKey(&key.PublicKey)); err != nil {
		return err
	}
	if err := writePEM(master.HostPrivKey, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key)); err != nil {
		return err
	}
	if err := os.WriteFile(master.HostCert, certPEM, 0644); err != nil {
		return caerrors.IoFailureError("writing master certificate %s: %s", master.HostCert, err)
	}
	if err := os.WriteFile(layout.PathToCert(ca.SignedDir, masterCertname), certPEM, 0644); err != nil {
		return caerrors.IoFailureError("copying master certificate into signed directory: %s", err)
	}
	if err := os.WriteFile(master.LocalCACert, caCertBytes, 0644); err != nil {
		return caerrors.IoFailureError("writing local CA certificate copy %s: %s", master.LocalCACert, err)
	}

	log.Infof("bootstrapped master certificate %q with serial %s", masterCertname, serial.Format(serialInt))
	return nil
}

func writePEM(path, pemType string, der []byte) error {
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: der}), 0644); err != nil {
		return caerrors.IoFailureError("writing %s: %s", path, err)
	}
	return nil
}

func mustMarshalPKIXPublicKey(pub *rsa.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		// rsa.PublicKey is always marshalable; a failure here means the
		// standard library itself is broken.
		panic(err)
	}
	return der
}
