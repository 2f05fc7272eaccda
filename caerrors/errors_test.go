package caerrors

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := DuplicateCertError("agent1", "signed certificate")
	if !Is(err, DuplicateCert) {
		t.Errorf("expected DuplicateCert, got %v", err)
	}
	if Is(err, PartialState) {
		t.Errorf("expected not PartialState")
	}
}

func TestIsRejectsPlainErrors(t *testing.T) {
	if Is(errors.New("boom"), InternalServer) {
		t.Errorf("plain errors must never match a Kind")
	}
}

func TestPartialStateCarriesLists(t *testing.T) {
	err := PartialStateError([]string{"a"}, []string{"b", "c"})
	ce, ok := err.(*CAError)
	if !ok {
		t.Fatalf("expected *CAError")
	}
	if len(ce.Found) != 1 || len(ce.Missing) != 2 {
		t.Errorf("found/missing lists not preserved: %+v", ce)
	}
}

func TestDuplicateCertCarriesFields(t *testing.T) {
	err := DuplicateCertError("foo", "already requested")
	ce := err.(*CAError)
	if ce.Subject != "foo" || ce.Artifact != "already requested" {
		t.Errorf("unexpected fields: %+v", ce)
	}
}
