// Package test provides small assertion helpers used throughout this
// module's test suites, in the style of the teacher family's own
// hand-rolled test package (see sheurich-boulder's
// ca/certificate-authority-data_test.go, which calls
// test.AssertNotError / test.AssertError rather than a third-party
// assertion library).
package test

import (
	"reflect"
	"strings"
	"testing"
)

// AssertNotError fails the test if err is non-nil.
func AssertNotError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error, got nil", msg)
	}
}

// AssertEquals fails the test if two comparable values differ.
func AssertEquals(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Fatalf("%s: got %v, want %v", msg, got, want)
	}
}

// AssertDeepEquals fails the test if two values are not deeply equal.
func AssertDeepEquals(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("%s: got %#v, want %#v", msg, got, want)
	}
}

// AssertContains fails the test if haystack does not contain needle.
func AssertContains(t *testing.T, haystack, needle, msg string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("%s: %q does not contain %q", msg, haystack, needle)
	}
}
