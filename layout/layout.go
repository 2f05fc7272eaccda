// Package layout derives on-disk file locations from a subject
// (certname) and a base directory, matching the legacy Ruby CA's flat
// per-subject layout.
package layout

import (
	"path/filepath"

	"github.com/puppetlabs/puppetserver-ca-core/caerrors"
	"github.com/puppetlabs/puppetserver-ca-core/certname"
)

// PathToCert returns signeddir/{subject}.pem.
func PathToCert(signedDir, subject string) string {
	return filepath.Join(signedDir, subject+".pem")
}

// PathToCSR returns csrdir/{subject}.pem.
func PathToCSR(csrDir, subject string) string {
	return filepath.Join(csrDir, subject+".pem")
}

// ValidateSubject rejects subjects containing '/', '\', or NUL. The
// spec marks this defensive check as optional ("MAY reject"); this
// module resolves that open question by always performing it, since
// subjects flow directly into filesystem paths (see DESIGN.md).
func ValidateSubject(subject string) error {
	if _, err := certname.New(subject); err != nil {
		return caerrors.MalformedCsrError("%s", err)
	}
	return nil
}
