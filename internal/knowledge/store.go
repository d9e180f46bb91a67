package knowledge

import (
	"context"
	"time"
)

// Store is the per-user knowledge state shared by all concurrent exchanges.
//
// Lookups for unknown users or concepts report "not found" through nil or
// empty returns, never through errors; the error result is reserved for
// storage failures, so callers can treat every read as a total function.
// Read-modify-write operations are serialized per user.
type Store interface {
	// UserMemory returns the user's memory, or nil when the user is unknown.
	// It never creates memory as a side effect.
	UserMemory(ctx context.Context, userID string) (*UserMemory, error)

	// UpdateConceptMastery upserts the mastery record for (user, concept):
	// confidence is clamped into [0, 1] and overwritten last-write-wins,
	// LastReviewed is overwritten, and ReviewCount is incremented by one.
	// The user's memory is created lazily with the default learning style.
	UpdateConceptMastery(ctx context.Context, userID, concept string, confidence float64, at time.Time) error

	// ConceptMastery returns the display view for (user, concept), or nil
	// when either is unknown.
	ConceptMastery(ctx context.Context, userID, concept string) (*MasteryView, error)

	// RecordInteraction assigns a unique id, appends the interaction, and
	// appends a trimmed summary to the bounded history, evicting the oldest
	// entry beyond HistoryLimit. Returns the assigned id.
	RecordInteraction(ctx context.Context, in Interaction) (string, error)

	// RecordFeedback appends an effectiveness feedback record. The referenced
	// interaction id is not validated.
	RecordFeedback(ctx context.Context, fb Feedback) error

	// RelevantInteractions returns up to limit interactions whose concept list
	// overlaps the requested concepts, in insertion order. Unknown users get
	// an empty slice.
	RelevantInteractions(ctx context.Context, userID string, concepts []string, limit int) ([]Interaction, error)

	// UpdateLearningStyle overwrites the user's teaching preference, creating
	// the user's memory lazily if needed.
	UpdateLearningStyle(ctx context.Context, userID string, style LearningStyle) error

	Close() error
}

func conceptsOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
