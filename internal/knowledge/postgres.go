package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists knowledge state in PostgreSQL. Per-user atomicity
// comes from row-level upserts; the bounded history is derived from the
// newest interactions rather than kept as a separate mutable list.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS concept_mastery (
			user_id TEXT NOT NULL,
			concept TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			last_reviewed TIMESTAMPTZ NOT NULL,
			review_count INTEGER NOT NULL DEFAULT 0,
			misconceptions TEXT[] NOT NULL DEFAULT '{}',
			PRIMARY KEY (user_id, concept)
		);`,
		`CREATE TABLE IF NOT EXISTS learning_styles (
			user_id TEXT PRIMARY KEY,
			preference TEXT NOT NULL,
			pace TEXT NOT NULL,
			depth TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			user_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			concepts TEXT[] NOT NULL DEFAULT '{}',
			context_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_seq ON interactions (user_id, seq);`,
		`CREATE TABLE IF NOT EXISTS interaction_feedback (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			interaction_id TEXT NOT NULL,
			rating INTEGER NOT NULL,
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) UserMemory(ctx context.Context, userID string) (*UserMemory, error) {
	out := UserMemory{
		UserID:        userID,
		Concepts:      make(map[string]ConceptMasteryRecord),
		LearningStyle: DefaultLearningStyle(),
	}
	known := false

	var style LearningStyle
	err := s.pool.QueryRow(ctx,
		`SELECT preference, pace, depth FROM learning_styles WHERE user_id=$1`,
		userID,
	).Scan(&style.Preference, &style.Pace, &style.Depth)
	switch {
	case err == nil:
		out.LearningStyle = style
		known = true
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("query learning style: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT concept, confidence, last_reviewed, review_count, misconceptions
		 FROM concept_mastery WHERE user_id=$1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query concept mastery: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var concept string
		var rec ConceptMasteryRecord
		if err := rows.Scan(&concept, &rec.Confidence, &rec.LastReviewed, &rec.ReviewCount, &rec.Misconceptions); err != nil {
			return nil, fmt.Errorf("scan mastery row: %w", err)
		}
		out.Concepts[concept] = rec
		known = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery rows: %w", err)
	}

	history, err := s.recentHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	out.History = history
	if len(history) > 0 {
		known = true
	}

	if !known {
		return nil, nil
	}
	return &out, nil
}

func (s *PostgresStore) recentHistory(ctx context.Context, userID string) ([]HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_message, ai_response, concepts, created_at
		 FROM interactions WHERE user_id=$1 ORDER BY seq DESC LIMIT $2`,
		userID, HistoryLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, HistoryLimit)
	for rows.Next() {
		var e HistoryEntry
		var answer string
		if err := rows.Scan(&e.Question, &answer, &e.Concepts, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Answer = summarizeAnswer(answer)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *PostgresStore) UpdateConceptMastery(ctx context.Context, userID, concept string, confidence float64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO learning_styles (user_id, preference, pace, depth)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (user_id) DO NOTHING`,
		userID, DefaultLearningStyle().Preference, DefaultLearningStyle().Pace, DefaultLearningStyle().Depth,
	)
	if err != nil {
		return fmt.Errorf("ensure learning style: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO concept_mastery (user_id, concept, confidence, last_reviewed, review_count)
		 VALUES ($1, $2, $3, $4, 1)
		 ON CONFLICT (user_id, concept) DO UPDATE SET
			confidence = EXCLUDED.confidence,
			last_reviewed = EXCLUDED.last_reviewed,
			review_count = concept_mastery.review_count + 1`,
		userID, concept, clampConfidence(confidence), at,
	)
	if err != nil {
		return fmt.Errorf("upsert concept mastery: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConceptMastery(ctx context.Context, userID, concept string) (*MasteryView, error) {
	var view MasteryView
	view.Concept = concept
	err := s.pool.QueryRow(ctx,
		`SELECT confidence, last_reviewed, review_count, misconceptions
		 FROM concept_mastery WHERE user_id=$1 AND concept=$2`,
		userID, concept,
	).Scan(&view.ConfidenceLevel, &view.LastReviewed, &view.ExposureCount, &view.Misconceptions)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query concept mastery: %w", err)
	}
	if view.Misconceptions == nil {
		view.Misconceptions = []string{}
	}
	return &view, nil
}

func (s *PostgresStore) RecordInteraction(ctx context.Context, in Interaction) (string, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	if in.Concepts == nil {
		in.Concepts = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO interactions (id, user_id, user_message, ai_response, concepts, context_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		in.ID, in.UserID, in.UserMessage, in.AIResponse, in.Concepts, in.ContextID, in.Timestamp,
	)
	if err != nil {
		return "", fmt.Errorf("save interaction: %w", err)
	}
	return in.ID, nil
}

func (s *PostgresStore) RecordFeedback(ctx context.Context, fb Feedback) error {
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interaction_feedback (user_id, interaction_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		fb.UserID, fb.InteractionID, fb.Rating, fb.Comment, fb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) RelevantInteractions(ctx context.Context, userID string, concepts []string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	if concepts == nil {
		concepts = []string{}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, user_message, ai_response, concepts, context_id, created_at
		 FROM interactions WHERE user_id=$1 AND concepts && $2 ORDER BY seq LIMIT $3`,
		userID, concepts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query relevant interactions: %w", err)
	}
	defer rows.Close()

	out := make([]Interaction, 0, limit)
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.ID, &in.UserID, &in.UserMessage, &in.AIResponse, &in.Concepts, &in.ContextID, &in.Timestamp); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interaction rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateLearningStyle(ctx context.Context, userID string, style LearningStyle) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO learning_styles (user_id, preference, pace, depth)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET
			preference = EXCLUDED.preference,
			pace = EXCLUDED.pace,
			depth = EXCLUDED.depth`,
		userID, style.Preference, style.Pace, style.Depth,
	)
	if err != nil {
		return fmt.Errorf("upsert learning style: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
