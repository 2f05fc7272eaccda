package layout

import "testing"

func TestPathToCert(t *testing.T) {
	got := PathToCert("/etc/puppetlabs/ca/signed", "agent1")
	want := "/etc/puppetlabs/ca/signed/agent1.pem"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestPathToCSR(t *testing.T) {
	got := PathToCSR("/etc/puppetlabs/ca/requests", "agent1")
	want := "/etc/puppetlabs/ca/requests/agent1.pem"
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestValidateSubjectRejectsTraversal(t *testing.T) {
	cases := []string{"../escape", "a/b", `a\b`, "a\x00b", ""}
	for _, c := range cases {
		if err := ValidateSubject(c); err == nil {
			t.Errorf("expected rejection for %q", c)
		}
	}
}

func TestValidateSubjectAcceptsCertname(t *testing.T) {
	if err := ValidateSubject("agent1.example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
