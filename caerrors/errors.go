// Package caerrors provides the tagged-variant error carrier used
// throughout the CA core. Call sites construct a *CAError with one of
// the Kind-specific constructors; callers test for a kind with Is.
package caerrors

import "fmt"

// Kind provides a coarse category for CAErrors, mirroring the set of
// error kinds a Puppet-compatible CA core must distinguish at its
// boundary.
type Kind int

const (
	// InternalServer is a catch-all for conditions that should never
	// happen given valid input and a healthy filesystem.
	InternalServer Kind = iota
	// PartialState means some but not all required CA artifacts exist.
	PartialState
	// DuplicateCert means a cert or CSR already exists for a subject
	// and duplicates are disallowed.
	DuplicateCert
	// MalformedCsr means CSR bytes failed PEM/DER parsing.
	MalformedCsr
	// CryptoFailure means key generation, signing, or CRL generation
	// failed.
	CryptoFailure
	// IoFailure means a filesystem or process-launch operation failed.
	IoFailure
	// PolicyReject is not an error in the traditional sense: autosign
	// returned false and the CSR should be stashed, not signed.
	PolicyReject
)

func (k Kind) String() string {
	switch k {
	case PartialState:
		return "PartialState"
	case DuplicateCert:
		return "DuplicateCert"
	case MalformedCsr:
		return "MalformedCsr"
	case CryptoFailure:
		return "CryptoFailure"
	case IoFailure:
		return "IoFailure"
	case PolicyReject:
		return "PolicyReject"
	default:
		return "InternalServer"
	}
}

// CAError represents a domain error raised by the CA core.
type CAError struct {
	Kind   Kind
	Detail string

	// Subject and Artifact are populated for DuplicateCert errors.
	Subject  string
	Artifact string

	// Found and Missing are populated for PartialState errors.
	Found   []string
	Missing []string
}

func (e *CAError) Error() string {
	return e.Detail
}

// New builds a CAError of the given kind with a formatted message.
func New(kind Kind, msg string, args ...interface{}) error {
	return &CAError{Kind: kind, Detail: fmt.Sprintf(msg, args...)}
}

// Is reports whether err is a *CAError of the given kind.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*CAError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}

// PartialStateError reports that some but not all CA artifacts exist.
func PartialStateError(found, missing []string) error {
	return &CAError{
		Kind:    PartialState,
		Detail:  fmt.Sprintf("partial CA state: found %v, missing %v", found, missing),
		Found:   found,
		Missing: missing,
	}
}

// DuplicateCertError reports that subject already has the named
// artifact ("signed certificate" or "certificate request") on disk.
func DuplicateCertError(subject, artifact string) error {
	return &CAError{
		Kind:     DuplicateCert,
		Detail:   fmt.Sprintf("%s already has a %s", subject, artifact),
		Subject:  subject,
		Artifact: artifact,
	}
}

// MalformedCsrError wraps a CSR parse failure.
func MalformedCsrError(msg string, args ...interface{}) error {
	return New(MalformedCsr, msg, args...)
}

// CryptoFailureError wraps a key generation or signing failure.
func CryptoFailureError(msg string, args ...interface{}) error {
	return New(CryptoFailure, msg, args...)
}

// IoFailureError wraps a filesystem or process-launch failure.
func IoFailureError(msg string, args ...interface{}) error {
	return New(IoFailure, msg, args...)
}

// InternalServerError wraps an unexpected internal failure.
func InternalServerError(msg string, args ...interface{}) error {
	return New(InternalServer, msg, args...)
}
