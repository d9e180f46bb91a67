package tutor

import "strings"

// conceptKeywords maps a canonical concept name to the surface terms that
// signal it in learner or model text. Matching is case-insensitive and
// word-boundary based.
var conceptKeywords = []struct {
	concept  string
	keywords []string
}{
	{"variables", []string{"variable", "variables", "assignment", "declaration"}},
	{"conditionals", []string{"if statement", "conditional", "conditionals", "else branch", "switch"}},
	{"loops", []string{"loop", "loops", "iterate", "iteration", "for loop", "while loop"}},
	{"arrays", []string{"array", "arrays", "slice", "slices", "index out of"}},
	{"functions", []string{"function", "functions", "parameter", "return value", "arguments"}},
	{"recursion", []string{"recursion", "recursive", "base case", "call stack"}},
	{"pointers", []string{"pointer", "pointers", "reference", "dereference", "nil pointer"}},
	{"closures", []string{"closure", "closures", "captured variable", "anonymous function"}},
	{"data-structures", []string{"linked list", "hash map", "dictionary", "stack", "queue", "tree", "graph"}},
	{"complexity", []string{"big o", "big-o", "time complexity", "space complexity", "o(n"}},
	{"concurrency", []string{"goroutine", "thread", "concurrency", "race condition", "mutex", "deadlock"}},
	{"error-handling", []string{"exception", "error handling", "try catch", "panic", "stack trace"}},
	{"testing", []string{"unit test", "test case", "assertion", "mocking", "test coverage"}},
	{"debugging", []string{"debug", "debugger", "breakpoint", "bug", "stepping through"}},
}

// DetectConcepts scans the exchange text for known course concepts. The
// result is deduplicated and ordered by the catalog, so repeated exchanges
// about the same topic produce stable concept lists.
func DetectConcepts(texts ...string) []string {
	var haystack strings.Builder
	for _, t := range texts {
		haystack.WriteString(strings.ToLower(t))
		haystack.WriteByte('\n')
	}
	text := haystack.String()

	var found []string
	for _, entry := range conceptKeywords {
		for _, kw := range entry.keywords {
			if containsTerm(text, kw) {
				found = append(found, entry.concept)
				break
			}
		}
	}
	return found
}

// containsTerm reports whether term occurs in text at word boundaries. Terms
// with punctuation like "o(n" are matched as plain substrings.
func containsTerm(text, term string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		if boundaryBefore(text, start) && boundaryAfter(text, end, term) {
			return true
		}
		idx = start + 1
	}
}

func boundaryBefore(text string, start int) bool {
	if start == 0 {
		return true
	}
	return !isWordByte(text[start-1])
}

func boundaryAfter(text string, end int, term string) bool {
	if strings.ContainsAny(term, "()-") {
		return true
	}
	if end >= len(text) {
		return true
	}
	return !isWordByte(text[end])
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// GenerateFollowups proposes exactly three next prompts for the learner,
// anchored on the detected concepts when there are any.
func GenerateFollowups(concepts []string) []string {
	if len(concepts) == 0 {
		return []string{
			"Can you walk me through an example?",
			"How does this connect to what I already know?",
			"What should I practice next?",
		}
	}
	first := concepts[0]
	followups := []string{
		"Can you show me a small example using " + first + "?",
		"What mistakes do people usually make with " + first + "?",
	}
	if len(concepts) > 1 {
		followups = append(followups, "How do "+first+" and "+concepts[1]+" relate?")
	} else {
		followups = append(followups, "What exercise would help me practice "+first+"?")
	}
	return followups
}
