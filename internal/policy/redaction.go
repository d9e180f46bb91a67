// Package policy sanitizes learner text before it reaches durable storage.
package policy

import "regexp"

var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern      = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	studentIDPattern = regexp.MustCompile(`(?i)\bstudent\s*(?:id|number)[:#]?\s*[A-Za-z0-9\-]{4,}`)
)

// RedactPII masks common high-risk PII patterns in free-form learner text.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	next = studentIDPattern.ReplaceAllString(out, "[REDACTED_STUDENT_ID]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactExchange masks PII in both sides of a question/answer pair. Model
// answers can echo whatever the learner typed, so both go through the same
// pass.
func RedactExchange(question, answer string) (string, string, bool) {
	q, qChanged := RedactPII(question)
	a, aChanged := RedactPII(answer)
	return q, a, qChanged || aChanged
}
