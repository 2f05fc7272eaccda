package calog

import "testing"

func TestMockRecordsLines(t *testing.T) {
	m := UseMock()
	m.Infof("signed %s", "agent1")
	m.AuditErr("duplicate cert for foo")

	lines := m.GetAll()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if lines[0] != "INFO: signed agent1" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if lines[1] != "AUDIT-ERR: duplicate cert for foo" {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}
