package certname

import "testing"

func TestNewRejectsPathCharacters(t *testing.T) {
	for _, raw := range []string{"../escape", "a/b", `a\b`, ""} {
		if _, err := New(raw); err == nil {
			t.Errorf("expected New(%q) to fail", raw)
		}
	}
}

func TestToCommonName(t *testing.T) {
	s, err := New("agent1.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.ToCommonName(); got != "CN=agent1.example.com" {
		t.Errorf("unexpected CN: %q", got)
	}
}

func TestNormalizeLowercases(t *testing.T) {
	if Normalize("Agent1.EXAMPLE.com") != "agent1.example.com" {
		t.Errorf("normalize did not lowercase")
	}
}
