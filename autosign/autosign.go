// Package autosign implements the CA's autosign decision: a boolean
// short-circuit, an executable script, or a whitelist of exact names
// and glob patterns, consulted in that order.
package autosign

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/puppetlabs/puppetserver-ca-core/calog"
	"github.com/puppetlabs/puppetserver-ca-core/settings"
)

var tracer = otel.Tracer("github.com/puppetlabs/puppetserver-ca-core/autosign")

// Metrics holds the Prometheus counters the engine updates, labeled by
// decision ("sign"/"reject") and source ("bool"/"script"/"whitelist"/"absent").
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers and returns a Metrics for the given registerer.
func NewMetrics(stats prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ca_autosign_decisions_total",
		Help: "Number of autosign decisions, by source and outcome",
	}, []string{"source", "decision"})
	stats.MustRegister(decisions)
	return &Metrics{decisions: decisions}
}

func (m *Metrics) note(source string, signed bool) {
	if m == nil {
		return
	}
	decision := "reject"
	if signed {
		decision = "sign"
	}
	m.decisions.WithLabelValues(source, decision).Inc()
}

// CSRReaderFactory produces a fresh, independently-readable stream of
// CSR bytes each time it is called. The policy engine may consume one
// reader (e.g. piping it to a script's stdin) while downstream signing
// still needs to read the CSR from the beginning.
type CSRReaderFactory func() io.Reader

// Decide applies the decision order from spec §4.4 and returns whether
// subject should be autosigned.
func Decide(ctx context.Context, log calog.Logger, m *Metrics, policy settings.Autosign, subject string, csr CSRReaderFactory, loadPath []string) bool {
	ctx, span := tracer.Start(ctx, "autosign.Decide")
	defer span.End()

	if policy.IsBool {
		m.note("bool", policy.Bool)
		return policy.Bool
	}

	info, err := os.Stat(policy.Path)
	if err != nil {
		log.Debugf("autosign path %s does not exist, rejecting %s: %s", policy.Path, subject, err)
		m.note("absent", false)
		return false
	}

	if isExecutable(info) {
		signed := runScript(ctx, log, policy.Path, subject, csr, loadPath)
		m.note("script", signed)
		return signed
	}

	signed := matchesWhitelist(log, policy.Path, subject)
	m.note("whitelist", signed)
	return signed
}

func isExecutable(info os.FileInfo) bool {
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}

// runScript executes the autosign script with subject as argv[1] and
// the CSR bytes on stdin. Exit 0 means sign; any other outcome
// (non-zero exit, launch failure) means do not sign.
func runScript(ctx context.Context, log calog.Logger, scriptPath, subject string, csr CSRReaderFactory, loadPath []string) bool {
	cmd := exec.CommandContext(ctx, scriptPath, subject)
	cmd.Stdin = csr()
	cmd.Env = withRubyLib(os.Environ(), loadPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	log.Debugf("autosign script %s stdout: %s", scriptPath, stdout.String())
	log.Debugf("autosign script %s stderr: %s", scriptPath, stderr.String())
	if err != nil {
		log.Debugf("autosign script %s for %s did not signal sign: %s", scriptPath, subject, err)
		return false
	}
	return true
}

// withRubyLib rewrites RUBYLIB in env to be the existing RUBYLIB (if
// any) followed by every entry of loadPath resolved to an absolute
// path, joined with the platform path separator.
func withRubyLib(env []string, loadPath []string) []string {
	var existing string
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, "RUBYLIB=") {
			existing = strings.TrimPrefix(kv, "RUBYLIB=")
			continue
		}
		out = append(out, kv)
	}

	parts := make([]string, 0, len(loadPath)+1)
	if existing != "" {
		parts = append(parts, existing)
	}
	for _, p := range loadPath {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		parts = append(parts, abs)
	}

	out = append(out, "RUBYLIB="+strings.Join(parts, string(os.PathListSeparator)))
	return out
}

// matchesWhitelist applies whitelist matching (spec §4.4) to every
// non-comment, non-blank line of the file at path.
func matchesWhitelist(log calog.Logger, path, subject string) bool {
	f, err := os.Open(path)
	if err != nil {
		log.AuditErrf("could not open autosign whitelist %s: %s", path, err)
		return false
	}
	defer f.Close()

	matched := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.ContainsAny(line, "# ") {
			log.AuditErrf("invalid autosign whitelist entry %q: contains '#' or space", line)
			continue
		}
		if lineMatches(line, subject) {
			matched = true
		}
	}
	return matched
}

func lineMatches(line, subject string) bool {
	if line == "*" {
		return true
	}
	if strings.HasPrefix(line, "*") {
		return GlobMatches(line, subject)
	}
	return line == subject
}

// GlobMatches implements the glob matching rule from spec §4.4:
// lowercase both sides, split on '.', reverse, drop the wildcard's
// final reversed label, and require the reversed subject labels to
// start with what remains.
func GlobMatches(glob, subject string) bool {
	globLabels := reverseLabels(glob)
	subjectLabels := reverseLabels(subject)
	if len(globLabels) == 0 {
		return false
	}
	// Drop the wildcard label itself (the reversed sequence's last entry).
	globLabels = globLabels[:len(globLabels)-1]
	if len(globLabels) > len(subjectLabels) {
		return false
	}
	for i, want := range globLabels {
		if subjectLabels[i] != want {
			return false
		}
	}
	return true
}

func reverseLabels(s string) []string {
	labels := strings.Split(strings.ToLower(s), ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}
