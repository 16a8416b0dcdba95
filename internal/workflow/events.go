// Package workflow drives the staged segmentation pipeline: intent
// extraction, feature matching, strategy composition, metric prediction and
// report composition, with conditional routing and per-stage event
// streaming.
package workflow

import (
	"github.com/corrift/segmentd/internal/metrics"
	"github.com/corrift/segmentd/internal/session"
)

// EventType enumerates the streamed event kinds. Every run emits
// node_start/reasoning/node_complete per executed stage and exactly one
// terminal event.
type EventType string

const (
	EventNodeStart        EventType = "node_start"
	EventReasoning        EventType = "reasoning"
	EventNodeComplete     EventType = "node_complete"
	EventWorkflowComplete EventType = "workflow_complete"
	EventClarification    EventType = "clarification"
	EventModification     EventType = "modification"
	EventError            EventType = "error"
)

// Terminal reports whether the event type ends a run.
func (t EventType) Terminal() bool {
	switch t {
	case EventWorkflowComplete, EventClarification, EventModification, EventError:
		return true
	}
	return false
}

// Event is one item of a run's ordered stream. Which fields are populated
// depends on Type.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Title     string         `json:"title,omitempty"`
	Delta     string         `json:"delta,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Response  string         `json:"response,omitempty"`
	Steps     []ThinkingStep `json:"steps,omitempty"`
	Result    *Outcome       `json:"result,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// AudienceMember is one selected record in the terminal payload.
type AudienceMember struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Tier       string  `json:"tier"`
	MatchScore float64 `json:"matchScore"`
	Reason     string  `json:"reason"`
}

// Outcome is the payload of a workflow_complete terminal.
type Outcome struct {
	SessionID    string             `json:"session_id"`
	Intent       session.Intent     `json:"intent"`
	Proposal     Proposal           `json:"proposal"`
	AudienceSize int                `json:"audience_size"`
	TopAudience  []AudienceMember   `json:"top_audience"`
	Metrics      metrics.Prediction `json:"metrics"`
	Response     string             `json:"response"`
	Steps        []ThinkingStep     `json:"steps"`
}
