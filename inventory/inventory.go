// Package inventory appends the legacy one-line-per-certificate audit
// record the Ruby CA's external tooling reads. The core never reads
// this file back; it is a durable audit log for other tools.
package inventory

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// dateFormat reproduces the legacy Java SimpleDateFormat pattern
// "YYY-MM-dd'T'HH:mm:ssz" verbatim. That pattern's three-Y year field
// is a known quirk of the original formatter: despite only three Y's,
// the reference implementation renders a four-digit year, so this
// layout is hand-tuned to match that rendering rather than Go's
// ordinary YYYY-MM-DD convention (see DESIGN.md Open Question i).
const dateFormat = "2006-01-02T15:04:05MST"

// FormatTime renders an instant using the legacy inventory timestamp
// format.
func FormatTime(t time.Time) string {
	return t.Format(dateFormat)
}

// mu serializes appends across all inventory files in this process.
// The spec permits relying on POSIX line-level atomicity instead, but
// wrapping writes in a mutex avoids that platform assumption (§5).
var mu sync.Mutex

// Append writes one record to path: "0x{serial} {notBefore} {notAfter}
// /{subjectDN}\n". serialHex must already be formatted (see package
// serial); notBefore/notAfter are rendered with FormatTime.
func Append(path, serialHex string, notBefore, notAfter time.Time, subjectDN string) error {
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening inventory file %s: %w", path, err)
	}
	defer f.Close()

	line := fmt.Sprintf("0x%s %s %s /%s\n", serialHex, FormatTime(notBefore), FormatTime(notAfter), subjectDN)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("appending to inventory file %s: %w", path, err)
	}
	return nil
}

// Initialize creates an empty inventory file if one does not already
// exist, used by the initialization orchestrator.
func Initialize(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("creating inventory file %s: %w", path, err)
	}
	return f.Close()
}
