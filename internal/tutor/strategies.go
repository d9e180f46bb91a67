package tutor

// Strategy describes one teaching approach the tutor can apply.
type Strategy struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	BestFor     []string `json:"bestFor"`
}

var strategyCatalog = []Strategy{
	{
		ID:          "socratic",
		Name:        "Socratic questioning",
		Description: "Guide the learner with targeted questions instead of direct answers.",
		BestFor:     []string{"conceptual gaps", "debugging"},
	},
	{
		ID:          "worked-example",
		Name:        "Worked examples",
		Description: "Walk through a complete solved problem step by step before asking the learner to try one.",
		BestFor:     []string{"new concepts", "recursion", "data-structures"},
	},
	{
		ID:          "analogy",
		Name:        "Analogies",
		Description: "Map an unfamiliar concept onto something the learner already understands.",
		BestFor:     []string{"pointers", "concurrency"},
	},
	{
		ID:          "spaced-review",
		Name:        "Spaced review",
		Description: "Revisit low-confidence concepts at growing intervals instead of cramming.",
		BestFor:     []string{"retention", "exam prep"},
	},
	{
		ID:          "debug-first",
		Name:        "Debug it yourself",
		Description: "Hand the learner a broken version of their own approach and narrow down the failure together.",
		BestFor:     []string{"error-handling", "testing", "debugging"},
	},
}

// Strategies returns the static teaching-strategy catalog.
func Strategies() []Strategy {
	out := make([]Strategy, len(strategyCatalog))
	copy(out, strategyCatalog)
	return out
}
