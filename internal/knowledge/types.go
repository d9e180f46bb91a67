package knowledge

import "time"

// HistoryLimit bounds the per-user interaction history; the oldest entry is
// evicted once a new one would exceed it.
const HistoryLimit = 20

// answerSummaryMaxRunes trims assistant responses before they enter the
// bounded history, which exists for cheap relevance lookups, not archival.
const answerSummaryMaxRunes = 240

// LearningStyle is a per-user teaching preference record.
type LearningStyle struct {
	Preference string `json:"preference"`
	Pace       string `json:"pace"`
	Depth      string `json:"depth"`
}

// DefaultLearningStyle is applied when a user's memory is created lazily.
func DefaultLearningStyle() LearningStyle {
	return LearningStyle{Preference: "unspecified", Pace: "moderate", Depth: "detailed"}
}

// ConceptMasteryRecord tracks how confidently a user is believed to
// understand one named concept. Confidence is always within [0, 1];
// out-of-range writes are clamped. ReviewCount counts exposures: it is
// incremented on every mastery update. Records are never deleted.
type ConceptMasteryRecord struct {
	Confidence     float64   `json:"confidence"`
	LastReviewed   time.Time `json:"last_reviewed"`
	ReviewCount    int       `json:"review_count"`
	Misconceptions []string  `json:"misconceptions,omitempty"`
}

// MasteryView is a ConceptMasteryRecord reshaped for UI rendering.
type MasteryView struct {
	Concept         string    `json:"concept"`
	ConfidenceLevel float64   `json:"confidenceLevel"`
	LastReviewed    time.Time `json:"lastReviewed"`
	ExposureCount   int       `json:"exposureCount"`
	Misconceptions  []string  `json:"misconceptions"`
}

// HistoryEntry is one trimmed question/answer tuple in the bounded history.
type HistoryEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Concepts  []string  `json:"concepts"`
	Timestamp time.Time `json:"timestamp"`
}

// UserMemory is the per-user knowledge state: concept mastery, learning-style
// preference, and the bounded interaction history.
type UserMemory struct {
	UserID        string                          `json:"user_id"`
	Concepts      map[string]ConceptMasteryRecord `json:"concepts"`
	LearningStyle LearningStyle                   `json:"learning_style"`
	History       []HistoryEntry                  `json:"history"`
}

// Interaction is the durable-within-process record of one completed exchange.
type Interaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Concepts    []string  `json:"concepts"`
	Timestamp   time.Time `json:"timestamp"`
	ContextID   string    `json:"context_id,omitempty"`
}

// Feedback is an effectiveness rating a user attaches to a past interaction.
// The referenced interaction id is recorded as given, not validated.
type Feedback struct {
	UserID        string    `json:"user_id"`
	InteractionID string    `json:"interaction_id"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func summarizeAnswer(answer string) string {
	runes := []rune(answer)
	if len(runes) <= answerSummaryMaxRunes {
		return answer
	}
	return string(runes[:answerSummaryMaxRunes])
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
