// Package settings holds the immutable configuration records that the
// rest of the CA core is built around: CaSettings and MasterSettings.
package settings

import "strings"

// Autosign is a tagged variant over the two legal shapes of the
// autosign policy value: a short-circuiting boolean, or a filesystem
// path to either a whitelist file or an executable script. Modeling it
// this way (rather than as an interface{} or *bool+string pair) keeps
// the decision tree that interprets it in one place (see package
// autosign).
type Autosign struct {
	// IsBool is true when the value was configured as a boolean.
	IsBool bool
	Bool   bool
	// Path is meaningful only when IsBool is false.
	Path string
}

// AutosignBool constructs a boolean-valued Autosign policy.
func AutosignBool(b bool) Autosign {
	return Autosign{IsBool: true, Bool: b}
}

// AutosignPath constructs a path-valued Autosign policy.
func AutosignPath(path string) Autosign {
	return Autosign{Path: path}
}

// CaSettings is the immutable configuration of the CA itself: where its
// artifacts live, how certificates are validated and named, and how
// autosign decisions are made.
type CaSettings struct {
	Autosign            Autosign
	AllowDuplicateCerts bool

	CACert string
	CAKey  string
	CAPub  string
	CACRL  string

	CAName string
	CATTL  int // seconds

	CertInventory string

	CSRDir    string
	SignedDir string

	Serial string

	// LoadPath is appended to RUBYLIB, after any existing entries, when
	// invoking an autosign script, preserving compatibility with Puppet autosign scripts
	// written in Ruby that `require` CA-provided libraries.
	LoadPath []string
}

// caArtifactPaths returns every path-valued field of CaSettings, in a
// stable order, for use by the initialization orchestrator's
// all-or-nothing check (spec §4.10 step 1).
func (s CaSettings) caArtifactPaths() []string {
	return []string{s.CACert, s.CAKey, s.CAPub, s.CACRL, s.CertInventory, s.CSRDir, s.SignedDir, s.Serial}
}

// ArtifactPaths returns the CA's required artifact paths.
func (s CaSettings) ArtifactPaths() []string {
	return s.caArtifactPaths()
}

// MasterSettings is the immutable configuration of the master server
// certificate bootstrapped alongside the CA.
type MasterSettings struct {
	CertDir    string
	RequestDir string

	HostCert    string
	HostPrivKey string
	HostPubKey  string
	LocalCACert string

	// DNSAltNames is a comma-separated list, possibly empty.
	DNSAltNames string
}

// ArtifactPaths returns the master's required artifact paths.
func (s MasterSettings) ArtifactPaths() []string {
	return []string{s.CertDir, s.RequestDir, s.HostCert, s.HostPrivKey, s.HostPubKey, s.LocalCACert}
}

// AltNames parses DNSAltNames into a trimmed, non-empty slice. An
// absent or blank value yields nil.
func (s MasterSettings) AltNames() []string {
	if strings.TrimSpace(s.DNSAltNames) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s.DNSAltNames, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
