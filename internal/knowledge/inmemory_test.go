package knowledge

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateConceptMasteryLastWriteWins(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "recursion", 0.8, t1))
	view, err := s.ConceptMastery(ctx, "u1", "recursion")
	require.NoError(t, err)
	require.NotNil(t, view)
	require.Equal(t, 0.8, view.ConfidenceLevel)
	require.Equal(t, t1, view.LastReviewed)

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "recursion", 0.3, t2))
	view, err = s.ConceptMastery(ctx, "u1", "recursion")
	require.NoError(t, err)
	require.Equal(t, 0.3, view.ConfidenceLevel, "overwrite, not average")
	require.Equal(t, t2, view.LastReviewed)
}

func TestUpdateConceptMasteryIncrementsExposureCount(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "loops", 0.5, now))
	}
	view, err := s.ConceptMastery(ctx, "u1", "loops")
	require.NoError(t, err)
	require.Equal(t, 3, view.ExposureCount)
}

func TestUpdateConceptMasteryClampsConfidence(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "pointers", 1.7, now))
	view, err := s.ConceptMastery(ctx, "u1", "pointers")
	require.NoError(t, err)
	require.Equal(t, 1.0, view.ConfidenceLevel)

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "pointers", -0.2, now))
	view, err = s.ConceptMastery(ctx, "u1", "pointers")
	require.NoError(t, err)
	require.Equal(t, 0.0, view.ConfidenceLevel)
}

func TestLookupsForUnknownEntitiesReturnNil(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	mem, err := s.UserMemory(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, mem, "UserMemory must not create as a side effect")

	view, err := s.ConceptMastery(ctx, "ghost", "loops")
	require.NoError(t, err)
	require.Nil(t, view)

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "loops", 0.4, time.Now()))
	view, err = s.ConceptMastery(ctx, "u1", "closures")
	require.NoError(t, err)
	require.Nil(t, view, "known user, unknown concept")
}

func TestLazyCreateAppliesDefaultLearningStyle(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpdateConceptMastery(ctx, "u1", "loops", 0.4, time.Now()))
	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, mem)
	require.Equal(t, DefaultLearningStyle(), mem.LearningStyle)
}

func TestRecordInteractionBoundsHistory(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		id, err := s.RecordInteraction(ctx, Interaction{
			UserID:      "u1",
			UserMessage: fmt.Sprintf("question %d", i),
			AIResponse:  fmt.Sprintf("answer %d", i),
			Concepts:    []string{"loops"},
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)
	}

	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mem.History, HistoryLimit)
	require.Equal(t, "question 5", mem.History[0].Question, "oldest 5 evicted")
	require.Equal(t, "question 24", mem.History[len(mem.History)-1].Question)
	for i := 1; i < len(mem.History); i++ {
		require.False(t, mem.History[i].Timestamp.Before(mem.History[i-1].Timestamp), "chronological order")
	}
}

func TestRecordInteractionAssignsUniqueIDs(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", UserMessage: "q", AIResponse: "a"})
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate interaction id %s", id)
		seen[id] = true
	}
}

func TestRecordInteractionTrimsHistoryAnswer(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	long := make([]rune, answerSummaryMaxRunes*2)
	for i := range long {
		long[i] = 'x'
	}
	_, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", UserMessage: "q", AIResponse: string(long)})
	require.NoError(t, err)

	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, []rune(mem.History[0].Answer), answerSummaryMaxRunes)
}

func TestRelevantInteractionsFiltersByOverlap(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	for i, concepts := range [][]string{
		{"loops"},
		{"recursion"},
		{"loops", "arrays"},
		{"closures"},
		{"loops"},
	} {
		_, err := s.RecordInteraction(ctx, Interaction{
			UserID:      "u1",
			UserMessage: fmt.Sprintf("q%d", i),
			AIResponse:  "a",
			Concepts:    concepts,
		})
		require.NoError(t, err)
	}

	got, err := s.RelevantInteractions(ctx, "u1", []string{"loops"}, 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "q0", got[0].UserMessage, "insertion order preserved")
	require.Equal(t, "q2", got[1].UserMessage)
	require.Equal(t, "q4", got[2].UserMessage)

	got, err = s.RelevantInteractions(ctx, "u1", []string{"loops"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2, "limit respected")

	got, err = s.RelevantInteractions(ctx, "nobody", []string{"loops"}, 5)
	require.NoError(t, err)
	require.Empty(t, got, "unknown user yields empty slice")
}

func TestRecordFeedbackDoesNotValidateInteractionID(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	err := s.RecordFeedback(ctx, Feedback{
		UserID:        "u1",
		InteractionID: "no-such-interaction",
		Rating:        4,
	})
	require.NoError(t, err, "feedback is append-only and unvalidated")
}

func TestUpdateLearningStyleOverwrites(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	style := LearningStyle{Preference: "visual", Pace: "fast", Depth: "overview"}
	require.NoError(t, s.UpdateLearningStyle(ctx, "u1", style))

	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, style, mem.LearningStyle)
}

func TestConcurrentUpdatesForOneUserStaySerialized(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	const writers = 16
	const perWriter = 25
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.UpdateConceptMastery(ctx, "u1", "recursion", 0.5, now)
				_, _ = s.RecordInteraction(ctx, Interaction{UserID: "u1", UserMessage: "q", AIResponse: "a"})
			}
		}()
	}
	wg.Wait()

	view, err := s.ConceptMastery(ctx, "u1", "recursion")
	require.NoError(t, err)
	require.Equal(t, writers*perWriter, view.ExposureCount, "no lost updates")

	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mem.History, HistoryLimit)
}

func TestUserMemoryReturnsCopies(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", UserMessage: "q", AIResponse: "a", Concepts: []string{"loops"}})
	require.NoError(t, err)

	mem, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	mem.History[0].Concepts[0] = "mutated"
	mem.History[0].Question = "mutated"

	again, err := s.UserMemory(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "loops", again.History[0].Concepts[0])
	require.Equal(t, "q", again.History[0].Question)
}
