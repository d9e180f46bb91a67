package knowledge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps all knowledge state in process memory. It is the
// default store and the reference for store semantics.
//
// Concurrency: the outer RWMutex guards the user map; each user carries its
// own mutex so read-modify-write operations (mastery upserts, history
// appends) stay atomic per user while unrelated users proceed in parallel.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userState
}

type userState struct {
	mu           sync.Mutex
	memory       UserMemory
	interactions []Interaction
	feedback     []Feedback
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]*userState)}
}

// user returns the state for userID, creating it when create is set.
func (s *InMemoryStore) user(userID string, create bool) *userState {
	s.mu.RLock()
	us := s.users[userID]
	s.mu.RUnlock()
	if us != nil || !create {
		return us
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if us = s.users[userID]; us != nil {
		return us
	}
	us = &userState{
		memory: UserMemory{
			UserID:        userID,
			Concepts:      make(map[string]ConceptMasteryRecord),
			LearningStyle: DefaultLearningStyle(),
		},
	}
	s.users[userID] = us
	return us
}

func (s *InMemoryStore) UserMemory(_ context.Context, userID string) (*UserMemory, error) {
	us := s.user(userID, false)
	if us == nil {
		return nil, nil
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	out := UserMemory{
		UserID:        us.memory.UserID,
		Concepts:      make(map[string]ConceptMasteryRecord, len(us.memory.Concepts)),
		LearningStyle: us.memory.LearningStyle,
		History:       make([]HistoryEntry, len(us.memory.History)),
	}
	for concept, rec := range us.memory.Concepts {
		rec.Misconceptions = cloneStrings(rec.Misconceptions)
		out.Concepts[concept] = rec
	}
	for i, entry := range us.memory.History {
		entry.Concepts = cloneStrings(entry.Concepts)
		out.History[i] = entry
	}
	return &out, nil
}

func (s *InMemoryStore) UpdateConceptMastery(_ context.Context, userID, concept string, confidence float64, at time.Time) error {
	us := s.user(userID, true)

	us.mu.Lock()
	defer us.mu.Unlock()
	rec := us.memory.Concepts[concept]
	rec.Confidence = clampConfidence(confidence)
	rec.LastReviewed = at
	rec.ReviewCount++
	us.memory.Concepts[concept] = rec
	return nil
}

func (s *InMemoryStore) ConceptMastery(_ context.Context, userID, concept string) (*MasteryView, error) {
	us := s.user(userID, false)
	if us == nil {
		return nil, nil
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	rec, ok := us.memory.Concepts[concept]
	if !ok {
		return nil, nil
	}
	return &MasteryView{
		Concept:         concept,
		ConfidenceLevel: rec.Confidence,
		LastReviewed:    rec.LastReviewed,
		ExposureCount:   rec.ReviewCount,
		Misconceptions:  cloneStrings(rec.Misconceptions),
	}, nil
}

func (s *InMemoryStore) RecordInteraction(_ context.Context, in Interaction) (string, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	in.Concepts = cloneStrings(in.Concepts)

	us := s.user(in.UserID, true)
	us.mu.Lock()
	defer us.mu.Unlock()
	us.interactions = append(us.interactions, in)

	us.memory.History = append(us.memory.History, HistoryEntry{
		Question:  in.UserMessage,
		Answer:    summarizeAnswer(in.AIResponse),
		Concepts:  cloneStrings(in.Concepts),
		Timestamp: in.Timestamp,
	})
	if over := len(us.memory.History) - HistoryLimit; over > 0 {
		us.memory.History = append([]HistoryEntry(nil), us.memory.History[over:]...)
	}
	return in.ID, nil
}

func (s *InMemoryStore) RecordFeedback(_ context.Context, fb Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	us := s.user(fb.UserID, true)
	us.mu.Lock()
	defer us.mu.Unlock()
	us.feedback = append(us.feedback, fb)
	return nil
}

func (s *InMemoryStore) RelevantInteractions(_ context.Context, userID string, concepts []string, limit int) ([]Interaction, error) {
	us := s.user(userID, false)
	if us == nil {
		return []Interaction{}, nil
	}

	us.mu.Lock()
	defer us.mu.Unlock()
	out := make([]Interaction, 0, limit)
	for _, in := range us.interactions {
		if !conceptsOverlap(in.Concepts, concepts) {
			continue
		}
		in.Concepts = cloneStrings(in.Concepts)
		out = append(out, in)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) UpdateLearningStyle(_ context.Context, userID string, style LearningStyle) error {
	us := s.user(userID, true)
	us.mu.Lock()
	defer us.mu.Unlock()
	us.memory.LearningStyle = style
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
