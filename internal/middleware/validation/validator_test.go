package validation

import "testing"

func TestSQLInjectionPattern(t *testing.T) {
	cases := []struct {
		input string
		match bool
	}{
		{"What are the KYC requirements for banks?", false},
		{"union select password from users", true},
		{"DROP TABLE documents", true},
		{"<script>alert(1)</script>", true},
		{"explain the selection criteria for audits", false},
	}

	for _, tc := range cases {
		if got := sqlInjectionPattern.MatchString(tc.input); got != tc.match {
			t.Errorf("pattern match for %q = %v, want %v", tc.input, got, tc.match)
		}
	}
}

func TestHasAllowedExt(t *testing.T) {
	exts := []string{".txt", ".html", ".pdf"}

	if !hasAllowedExt("RBI_Master_Direction.PDF", exts) {
		t.Error("extension match should be case-insensitive")
	}
	if hasAllowedExt("malware.exe", exts) {
		t.Error("disallowed extension accepted")
	}
}
