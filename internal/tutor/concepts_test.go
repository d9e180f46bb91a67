package tutor

import (
	"strings"
	"testing"
)

func TestDetectConceptsFindsAndDeduplicates(t *testing.T) {
	got := DetectConcepts(
		"my recursive function never hits the base case",
		"Check the recursion depth and the call stack.",
	)
	if len(got) != 1 || got[0] != "recursion" {
		t.Fatalf("DetectConcepts() = %v, want [recursion]", got)
	}
}

func TestDetectConceptsOrdersByCatalog(t *testing.T) {
	got := DetectConcepts("my recursion over this array uses a loop")
	want := []string{"loops", "arrays", "recursion"}
	if len(got) != len(want) {
		t.Fatalf("DetectConcepts() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DetectConcepts() = %v, want %v", got, want)
		}
	}
}

func TestDetectConceptsRespectsWordBoundaries(t *testing.T) {
	if got := DetectConcepts("the looped playlist was arrayed nicely"); len(got) != 0 {
		t.Fatalf("DetectConcepts() = %v, want none for embedded substrings", got)
	}
	if got := DetectConcepts("what is big O notation, like O(n log n)?"); len(got) != 1 || got[0] != "complexity" {
		t.Fatalf("DetectConcepts() = %v, want [complexity]", got)
	}
}

func TestDetectConceptsEmptyInput(t *testing.T) {
	if got := DetectConcepts("", "nothing technical here"); len(got) != 0 {
		t.Fatalf("DetectConcepts() = %v, want none", got)
	}
}

func TestGenerateFollowupsAlwaysThree(t *testing.T) {
	for _, concepts := range [][]string{
		nil,
		{"loops"},
		{"loops", "arrays", "recursion"},
	} {
		got := GenerateFollowups(concepts)
		if len(got) != 3 {
			t.Fatalf("GenerateFollowups(%v) returned %d prompts, want 3", concepts, len(got))
		}
	}
}

func TestGenerateFollowupsAnchorsOnConcepts(t *testing.T) {
	got := GenerateFollowups([]string{"pointers", "functions"})
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "pointers") {
		t.Fatalf("followups = %v, want the first concept mentioned", got)
	}
	if !strings.Contains(joined, "functions") {
		t.Fatalf("followups = %v, want the second concept related", got)
	}
}

func TestStrategiesCatalogIsStableCopy(t *testing.T) {
	first := Strategies()
	if len(first) == 0 {
		t.Fatal("Strategies() returned empty catalog")
	}
	first[0].Name = "mutated"
	again := Strategies()
	if again[0].Name == "mutated" {
		t.Fatal("Strategies() exposes internal catalog slice")
	}
	for _, s := range again {
		if s.ID == "" || s.Name == "" || s.Description == "" {
			t.Fatalf("incomplete strategy entry: %+v", s)
		}
	}
}
