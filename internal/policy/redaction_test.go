package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +1 (555) 123-9876 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactPIIStudentID(t *testing.T) {
	out, changed := RedactPII("my student id: A12345 keeps failing the quiz login")
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if !strings.Contains(out, "[REDACTED_STUDENT_ID]") {
		t.Fatalf("output missing student id marker: %q", out)
	}
}

func TestRedactPIILeavesCleanTextAlone(t *testing.T) {
	input := "Why does my loop over the array skip the last element?"
	out, changed := RedactPII(input)
	if changed {
		t.Fatalf("changed = true for clean text")
	}
	if out != input {
		t.Fatalf("out = %q, want unchanged", out)
	}
}

func TestRedactExchange(t *testing.T) {
	q, a, changed := RedactExchange(
		"reach me at kim@school.edu",
		"I will email kim@school.edu the notes",
	)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	if strings.Contains(q, "@") || strings.Contains(a, "@") {
		t.Fatalf("email survived redaction: q=%q a=%q", q, a)
	}
}
