// Package admission implements the CSR Admission Controller (spec
// §4.9) and the duplicate-certificate policy it enforces first (spec
// §4.8): the entry point for CSR submissions arriving over the HTTP
// boundary.
package admission

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/jmhodges/clock"
	"golang.org/x/sync/singleflight"

	"github.com/puppetlabs/puppetserver-ca-core/autosign"
	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/calog"
	"github.com/puppetlabs/puppetserver-ca-core/layout"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
	"github.com/puppetlabs/puppetserver-ca-core/signer"
)

// Controller wires together the collaborators a CSR submission needs:
// the autosign engine, the signer, and the stasher. Per-subject
// submissions are de-duplicated in flight with a singleflight.Group
// (spec §5 permits, without requiring, a per-subject lock).
type Controller struct {
	Log            calog.Logger
	Clock          clock.Clock
	AutosignMetrics *autosign.Metrics
	SignerMetrics   *signer.Metrics

	inflight singleflight.Group
}

// ValidateDuplicateCertPolicy implements spec §4.8: it checks both the
// signed-cert and pending-CSR paths for subject independently, since a
// subject can trip either condition on its own.
func ValidateDuplicateCertPolicy(log calog.Logger, subject string, s settings.CaSettings) error {
	certPath := layout.PathToCert(s.SignedDir, subject)
	if _, err := os.Stat(certPath); err == nil {
		if s.AllowDuplicateCerts {
			log.Infof("%s already has a signed certificate; will overwrite", subject)
		} else {
			return caerrors.DuplicateCertError(subject, "signed certificate")
		}
	}

	csrPath := layout.PathToCSR(s.CSRDir, subject)
	if _, err := os.Stat(csrPath); err == nil {
		if s.AllowDuplicateCerts {
			log.Infof("%s already has a pending certificate request; will overwrite", subject)
		} else {
			return caerrors.DuplicateCertError(subject, "certificate request")
		}
	}

	return nil
}

// ProcessCSRSubmission buffers csrStream, enforces duplicate policy,
// consults the autosign engine, and routes to either the signer (sign)
// or the CSR stasher (pend). It guarantees that exactly one of "signed
// cert present" or "CSR present" holds for this submission, never
// both: on the sign path the CSR is never written to csrdir.
func (c *Controller) ProcessCSRSubmission(ctx context.Context, subject string, csrStream io.Reader, s settings.CaSettings) error {
	if err := layout.ValidateSubject(subject); err != nil {
		return err
	}

	csrBytes, err := io.ReadAll(csrStream)
	if err != nil {
		return caerrors.IoFailureError("reading CSR submission for %s: %s", subject, err)
	}

	_, err, _ = c.inflight.Do(subject, func() (interface{}, error) {
		return nil, c.admit(ctx, subject, csrBytes, s)
	})
	return err
}

func (c *Controller) admit(ctx context.Context, subject string, csrBytes []byte, s settings.CaSettings) error {
	if err := ValidateDuplicateCertPolicy(c.Log, subject, s); err != nil {
		c.Log.AuditErrf("rejecting CSR submission for %s: %s", subject, err)
		return err
	}

	reader := func() io.Reader { return bytes.NewReader(csrBytes) }

	signIt := autosign.Decide(ctx, c.Log, c.AutosignMetrics, s.Autosign, subject, reader, s.LoadPath)
	if signIt {
		_, err := signer.Sign(ctx, c.Clock, c.SignerMetrics, s, subject, csrBytes)
		if err != nil {
			c.Log.AuditErrf("signing CSR for %s failed: %s", subject, err)
			return err
		}
		c.Log.Infof("signed certificate for %s", subject)
		return nil
	}

	if err := os.WriteFile(layout.PathToCSR(s.CSRDir, subject), csrBytes, 0644); err != nil {
		return caerrors.IoFailureError("stashing CSR for %s: %s", subject, err)
	}
	c.Log.Infof("stashed certificate request for %s pending manual review", subject)
	return nil
}
