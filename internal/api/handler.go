// Package api exposes the segmentation pipeline over HTTP (chi, SSE
// streaming) and MCP (stdio).
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corrift/segmentd/internal/population"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/storage"
	"github.com/corrift/segmentd/internal/workflow"
)

const maxRequestBodySize = 1 << 20 // 1MB

// AnalysisRequest is the POST /v1/analysis body.
type AnalysisRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

// Deps holds the handler dependencies. Store may be nil; proposal apply
// then reports unavailability.
type Deps struct {
	Orchestrator *workflow.Orchestrator
	Store        *storage.Store
}

// NewHandler returns the HTTP API handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/v1/analysis", handleAnalysis(deps))
	r.Post("/v1/sessions", handleCreateSession(deps))
	r.Get("/v1/sessions", handleListSessions(deps))
	r.Get("/v1/sessions/{id}", handleGetSession(deps))
	r.Delete("/v1/sessions/{id}", handleResetSession(deps))
	r.Get("/v1/population/high-potential", handleHighPotential(deps))
	r.Post("/v1/prediction/metrics", handlePredictMetrics(deps))
	r.Post("/v1/proposals/{id}/apply", handleApplyProposal(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAnalysis(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnalysisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}

		events := deps.Orchestrator.Run(r.Context(), workflow.Request{
			SessionID: req.SessionID,
			Input:     req.Prompt,
		})

		if req.Stream {
			streamEvents(w, events)
			return
		}

		// Non-streaming: drain the run and return the terminal event only.
		var terminal *workflow.Event
		for ev := range events {
			if ev.Type.Terminal() {
				t := ev
				terminal = &t
			}
		}
		if terminal == nil {
			httpError(w, http.StatusInternalServerError, "api_error", "run ended without a terminal event")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(terminal)
	}
}

// streamEvents writes each event as one SSE message and flushes it
// individually so consumers see stage progress in real time.
func streamEvents(w http.ResponseWriter, events <-chan workflow.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
		flusher.Flush()
	}
}

func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := deps.Orchestrator.Sessions().Create()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"session_id": s.ID})
	}
}

// sessionSummary is the per-session line of GET /v1/sessions; full turn
// history stays behind GET /v1/sessions/{id}.
type sessionSummary struct {
	ID          string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	Turns       int       `json:"turns"`
	Goal        string    `json:"goal,omitempty"`
	Constraints []string  `json:"constraints,omitempty"`
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live := deps.Orchestrator.Sessions().List()

		out := make([]sessionSummary, 0, len(live))
		for _, s := range live {
			out = append(out, sessionSummary{
				ID:          s.ID,
				CreatedAt:   s.CreatedAt,
				Turns:       len(s.Turns),
				Goal:        s.Context.Intent.BusinessGoal,
				Constraints: s.Context.Constraints,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		s, ok := deps.Orchestrator.Sessions().Get(id)
		if !ok {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s)
	}
}

func handleResetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		replacement := deps.Orchestrator.Sessions().Reset(id)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":     "reset",
			"session_id": replacement.ID,
		})
	}
}

func handleHighPotential(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 10, 100)

		ranked := deps.Orchestrator.Population().HighPotential(limit)
		if ranked == nil {
			ranked = []population.Ranked{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ranked)
	}
}

func handlePredictMetrics(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req struct {
			AudienceSize int            `json:"audienceSize"`
			AvgUserScore float64        `json:"avgUserScore"`
			TierDist     map[string]int `json:"tierDistribution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.AudienceSize < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "audienceSize must not be negative")
			return
		}

		pred := deps.Orchestrator.Predictor().Predict(req.AudienceSize, req.AvgUserScore, req.TierDist)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pred)
	}
}

// handleApplyProposal re-runs a stored proposal's rules against the current
// population snapshot.
func handleApplyProposal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "proposal storage not configured")
			return
		}
		id := chi.URLParam(r, "id")

		stored, err := deps.Store.GetProposal(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "proposal not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load proposal: %v", err)
			return
		}

		var proposal workflow.Proposal
		if err := json.Unmarshal([]byte(stored.PayloadJSON), &proposal); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "stored proposal is corrupt: %v", err)
			return
		}

		var rs []rules.Rule
		for _, trait := range proposal.TargetTraits {
			rs = append(rs, trait.Rules...)
		}
		eval := rules.Evaluate(deps.Orchestrator.Population().Subjects(), rs)

		audience := make([]workflow.AudienceMember, 0, len(eval.Matches))
		for _, m := range eval.Top(-1) {
			audience = append(audience, workflow.AudienceMember{
				ID:         m.Subject.SubjectID(),
				Name:       m.Subject.Field("name").Text(),
				Tier:       m.Subject.Field("tier").Text(),
				MatchScore: m.Score,
				Reason:     m.Subject.Field("reason").Text(),
			})
		}

		var scoreSum float64
		tierDist := make(map[string]int)
		for _, m := range eval.Matches {
			if v, ok := m.Subject.Field("score").Float(); ok {
				scoreSum += v
			}
			tierDist[m.Subject.Field("tier").Text()]++
		}
		avg := 0.0
		if eval.Count > 0 {
			avg = scoreSum / float64(eval.Count)
		}
		pred := deps.Orchestrator.Predictor().Predict(eval.Count, avg, tierDist)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"proposal_id":   proposal.ID,
			"audience_size": eval.Count,
			"audience":      audience,
			"metrics":       pred,
		})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
