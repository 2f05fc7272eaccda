package serial

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/puppetlabs/puppetserver-ca-core/test"
)

func TestFormatRoundTrip(t *testing.T) {
	cases := map[int64]string{
		1:     "0001",
		47:    "002F",
		65535: "FFFF",
		65536: "10000",
	}
	for n, want := range cases {
		got := Format(n)
		test.AssertEquals(t, got, want, "format mismatch")
		parsed, err := Parse(got)
		test.AssertNotError(t, err, "parse")
		test.AssertEquals(t, parsed, n, "round trip mismatch")
	}
}

func TestParseCaseInsensitiveAndTrimmed(t *testing.T) {
	n, err := Parse(" ff\n")
	test.AssertNotError(t, err, "parse")
	test.AssertEquals(t, n, int64(255), "expected 255")
}

func TestNextMonotonic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serial")
	test.AssertNotError(t, Initialize(path), "initialize")

	var prev int64 = 0
	for i := 0; i < 5; i++ {
		n, err := Next(context.Background(), path, nil)
		test.AssertNotError(t, err, "next")
		if i > 0 && n != prev+1 {
			t.Fatalf("expected contiguous sequence, got %d after %d", n, prev)
		}
		prev = n
	}
	contents, err := os.ReadFile(path)
	test.AssertNotError(t, err, "read")
	test.AssertEquals(t, string(contents), "0006", "file should hold next serial")
}

func TestNextConcurrentSamePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "serial")
	test.AssertNotError(t, Initialize(path), "initialize")

	const n = 50
	seen := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Next(context.Background(), path, nil)
			if err != nil {
				t.Error(err)
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	values := make(map[int64]bool)
	for v := range seen {
		if values[v] {
			t.Fatalf("serial %d issued more than once", v)
		}
		values[v] = true
	}
	if len(values) != n {
		t.Fatalf("expected %d distinct serials, got %d", n, len(values))
	}
}

func TestNextMissingFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := Next(context.Background(), filepath.Join(dir, "nope"), nil)
	test.AssertError(t, err, "missing serial file should fail")
}
