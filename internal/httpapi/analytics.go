package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursekit/tutorstream/internal/knowledge"
	"github.com/coursekit/tutorstream/internal/tutor"
)

const defaultInteractionLimit = 10

func (s *Server) handleUserMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	mem, err := s.store.UserMemory(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if mem == nil {
		respondError(w, http.StatusNotFound, "memory_not_found", "no memory recorded for user "+userID)
		return
	}
	respondJSON(w, http.StatusOK, mem)
}

func (s *Server) handleConceptMastery(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	concept := chi.URLParam(r, "concept")
	view, err := s.store.ConceptMastery(r.Context(), userID, concept)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if view == nil {
		respondError(w, http.StatusNotFound, "mastery_not_found", "concept "+concept+" has not been reviewed yet")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleInteractions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var concepts []string
	if raw := strings.TrimSpace(r.URL.Query().Get("concepts")); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				concepts = append(concepts, c)
			}
		}
	}

	limit := defaultInteractionLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	interactions, err := s.store.RelevantInteractions(r.Context(), userID, concepts, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if interactions == nil {
		interactions = []knowledge.Interaction{}
	}
	respondJSON(w, http.StatusOK, interactions)
}

func (s *Server) handleUpdateLearningStyle(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var style knowledge.LearningStyle
	if err := decodeJSON(r, &style); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := s.store.UpdateLearningStyle(r.Context(), userID, style); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb knowledge.Feedback
	if err := decodeJSON(r, &fb); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(fb.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "userId is required")
		return
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	if err := s.store.RecordFeedback(r.Context(), fb); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleStrategies(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, tutor.Strategies())
}
