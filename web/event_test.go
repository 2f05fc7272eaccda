package web

import (
	"errors"
	"strings"
	"testing"

	"github.com/puppetlabs/puppetserver-ca-core/calog"
)

func TestRunLogsSuccessfulOperation(t *testing.T) {
	mockLog := calog.UseMock()
	r := NewRecorder(mockLog)

	err := r.Run("process_csr_submission", "agent1", func(e *Event) error {
		e.SerialHex = "0002"
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := mockLog.GetAll()
	if len(lines) != 1 {
		t.Fatalf("expected exactly one log line, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "INFO: process_csr_submission agent1 ok ") {
		t.Errorf("unexpected log line: %q", lines[0])
	}
	if !strings.Contains(lines[0], `"SerialHex":"0002"`) {
		t.Errorf("expected serial in JSON payload: %q", lines[0])
	}
}

func TestRunLogsFailedOperation(t *testing.T) {
	mockLog := calog.UseMock()
	r := NewRecorder(mockLog)

	err := r.Run("process_csr_submission", "agent1", func(e *Event) error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error to propagate")
	}

	lines := mockLog.GetAll()
	if len(lines) != 1 {
		t.Fatalf("expected exactly one log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "process_csr_submission agent1 error ") {
		t.Errorf("unexpected log line: %q", lines[0])
	}
	if !strings.Contains(lines[0], `"Error":"boom"`) {
		t.Errorf("expected error message in JSON payload: %q", lines[0])
	}
}

func TestSuppressSkipsLogging(t *testing.T) {
	mockLog := calog.UseMock()
	r := NewRecorder(mockLog)

	err := r.Run("get_certificate", "ca", func(e *Event) error {
		e.Suppress()
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mockLog.GetAll()) != 0 {
		t.Errorf("expected no log lines when event is suppressed")
	}
}

func TestAddErrorUnsuppresses(t *testing.T) {
	mockLog := calog.UseMock()
	r := NewRecorder(mockLog)

	err := r.Run("initialize", "", func(e *Event) error {
		e.Suppress()
		e.AddError("partial failure: %s", "missing cacert")
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := mockLog.GetAll()
	if len(lines) != 1 {
		t.Fatalf("expected AddError to un-suppress logging, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "missing cacert") {
		t.Errorf("expected internal error text in log line: %q", lines[0])
	}
}
