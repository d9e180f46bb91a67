package httpapi

import (
	"net/http"
	"time"
)

type healthServices struct {
	Database string `json:"database"`
	AI       string `json:"ai"`
}

type healthResponse struct {
	Status             string         `json:"status"`
	Available          bool           `json:"available"`
	Timestamp          string         `json:"timestamp"`
	Env                string         `json:"env"`
	DeepSeekConfigured bool           `json:"deepSeekConfigured"`
	StreamingMode      string         `json:"streamingMode"`
	Services           healthServices `json:"services"`
}

// handleHealth is the rich health contract the client consumes and caches.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	deepSeekConfigured := s.cfg.Provider.DeepSeekAPIKey != ""

	services := healthServices{Database: "connected", AI: "unavailable"}
	if s.store == nil {
		services.Database = "unavailable"
	}

	status := "unhealthy"
	streamingMode := ""
	if s.orchestrator != nil {
		services.AI = s.orchestrator.ProviderName()
		streamingMode = s.orchestrator.StreamingMode()
		status = "healthy"
		// A mock-only provider means the service answers but no real model is
		// behind it.
		if services.AI == "mock" && !deepSeekConfigured && s.cfg.Provider.OpenAIAPIKey == "" {
			status = "degraded"
		}
	}
	if services.Database == "unavailable" {
		status = "unhealthy"
	}

	respondJSON(w, http.StatusOK, healthResponse{
		Status:             status,
		Available:          status != "unhealthy",
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		Env:                s.cfg.Server.Env,
		DeepSeekConfigured: deepSeekConfigured,
		StreamingMode:      streamingMode,
		Services:           services,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.store != nil && s.orchestrator != nil
	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	respondJSON(w, status, map[string]any{
		"status":     state,
		"store_mode": s.storeMode,
	})
}
