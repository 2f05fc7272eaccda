// Package ca assembles the CA core's collaborators (serial allocator,
// autosign engine, signer, admission controller, initializer) behind
// the boundary API an HTTP layer calls (spec §6): GetCertificate,
// GetCertificateRequest, GetCertificateRevocationList,
// ProcessCSRSubmission, and Initialize.
package ca

import (
	"context"
	"io"
	"os"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/puppetlabs/puppetserver-ca-core/admission"
	"github.com/puppetlabs/puppetserver-ca-core/autosign"
	"github.com/puppetlabs/puppetserver-ca-core/bootstrap"
	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/calog"
	"github.com/puppetlabs/puppetserver-ca-core/layout"
	"github.com/puppetlabs/puppetserver-ca-core/serial"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
	"github.com/puppetlabs/puppetserver-ca-core/signer"
	"github.com/puppetlabs/puppetserver-ca-core/web"
)

// Metrics bundles the Prometheus counters for every collaborator the
// facade wires together, so a caller registers one struct instead of
// threading a registerer through every package constructor by hand.
type Metrics struct {
	Serial   *serial.Metrics
	Autosign *autosign.Metrics
	Signer   *signer.Metrics
}

// NewMetrics registers and returns a Metrics for the given registerer.
func NewMetrics(stats prometheus.Registerer) *Metrics {
	return &Metrics{
		Serial:   serial.NewMetrics(stats),
		Autosign: autosign.NewMetrics(stats),
		Signer:   signer.NewMetrics(stats),
	}
}

// CA is the top-level facade over the trust lifecycle: it owns no
// mutable state of its own beyond the singleflight de-duplication
// inherited from its admission.Controller, and delegates every
// operation to the leaf packages.
type CA struct {
	Log     calog.Logger
	Clock   clock.Clock
	Metrics *Metrics

	recorder   *web.Recorder
	controller *admission.Controller
}

// New builds a CA facade. metrics may be nil, in which case every
// collaborator runs without Prometheus instrumentation (useful for
// tests and for embedding contexts that register metrics elsewhere).
func New(log calog.Logger, clk clock.Clock, metrics *Metrics) *CA {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &CA{
		Log:      log,
		Clock:    clk,
		Metrics:  metrics,
		recorder: web.NewRecorder(log),
		controller: &admission.Controller{
			Log:             log,
			Clock:           clk,
			AutosignMetrics: metrics.Autosign,
			SignerMetrics:   metrics.Signer,
		},
	}
}

// GetCertificate implements spec §6: subject == "ca" returns the CA's
// own certificate; any other subject returns its signed certificate,
// or (false, nil) if none exists.
func (c *CA) GetCertificate(subject string, s settings.CaSettings) (string, bool, error) {
	if subject == "ca" {
		pemBytes, err := os.ReadFile(s.CACert)
		if err != nil {
			if os.IsNotExist(err) {
				return "", false, nil
			}
			return "", false, caerrors.IoFailureError("reading CA certificate %s: %s", s.CACert, err)
		}
		return string(pemBytes), true, nil
	}

	if err := layout.ValidateSubject(subject); err != nil {
		return "", false, err
	}
	pemBytes, err := os.ReadFile(layout.PathToCert(s.SignedDir, subject))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, caerrors.IoFailureError("reading certificate for %s: %s", subject, err)
	}
	return string(pemBytes), true, nil
}

// GetCertificateRequest implements spec §6: returns the pending CSR
// for subject, or (false, nil) if none exists.
func (c *CA) GetCertificateRequest(subject string, s settings.CaSettings) (string, bool, error) {
	if err := layout.ValidateSubject(subject); err != nil {
		return "", false, err
	}
	pemBytes, err := os.ReadFile(layout.PathToCSR(s.CSRDir, subject))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, caerrors.IoFailureError("reading certificate request for %s: %s", subject, err)
	}
	return string(pemBytes), true, nil
}

// GetCertificateRevocationList implements spec §6: returns the
// contents of the CA's CRL file verbatim.
func (c *CA) GetCertificateRevocationList(s settings.CaSettings) (string, error) {
	pemBytes, err := os.ReadFile(s.CACRL)
	if err != nil {
		return "", caerrors.IoFailureError("reading CRL %s: %s", s.CACRL, err)
	}
	return string(pemBytes), nil
}

// ProcessCSRSubmission implements spec §6 and §4.9, wrapped in a
// structured web.Event so every submission is logged exactly once,
// success or failure.
func (c *CA) ProcessCSRSubmission(ctx context.Context, subject string, csrStream io.Reader, s settings.CaSettings) error {
	return c.recorder.Run("process_csr_submission", subject, func(event *web.Event) error {
		err := c.controller.ProcessCSRSubmission(ctx, subject, csrStream, s)
		if err != nil {
			event.AddError("%s", err)
		}
		return err
	})
}

// Initialize implements spec §6 and §4.10.
func (c *CA) Initialize(ctx context.Context, caSettings settings.CaSettings, masterSettings settings.MasterSettings, masterCertname string, keyBits int) error {
	return c.recorder.Run("initialize", masterCertname, func(event *web.Event) error {
		err := bootstrap.Initialize(ctx, c.Clock, c.Log, caSettings, masterSettings, masterCertname, keyBits)
		if err != nil {
			event.AddError("%s", err)
		}
		return err
	})
}

// RefreshCRL is a supplemental operation (spec Non-goals exclude a
// revocation workflow, but not re-issuing the same, still-empty CRL on
// a schedule): it regenerates the CRL with a fresh thisUpdate/
// nextUpdate window while carrying forward no revocations, since
// revocation itself remains out of scope.
func (c *CA) RefreshCRL(ctx context.Context, s settings.CaSettings) error {
	return c.recorder.Run("refresh_crl", s.CAName, func(event *web.Event) error {
		return bootstrap.RefreshCRL(ctx, c.Clock, s)
	})
}
