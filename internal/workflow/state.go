package workflow

import (
	"log/slog"

	"github.com/corrift/segmentd/internal/session"
)

// ThinkingStep statuses.
const (
	StepPending   = "pending"
	StepActive    = "active"
	StepCompleted = "completed"
)

// ThinkingStep is a user-facing progress marker for one pipeline stage.
// Steps are appended and updated in place, never removed.
type ThinkingStep struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Stage identifiers and display titles, in pipeline order.
const (
	StageIntent   = "intent_recognition"
	StageMatching = "feature_matching"
	StageStrategy = "strategy_generation"
	StageMetrics  = "metric_prediction"
	StageReport   = "report_composition"
)

var stageTitles = map[string]string{
	StageIntent:   "意图识别",
	StageMatching: "特征匹配",
	StageStrategy: "策略生成",
	StageMetrics:  "效果预测",
	StageReport:   "报告生成",
}

var stageOrder = []string{StageIntent, StageMatching, StageStrategy, StageMetrics, StageReport}

// RunState is the transient record of one in-progress pipeline execution.
// Stage outputs merge in by key; key namespaces are stage-disjoint, so a
// collision means a stage contract was broken and is logged, never silent.
type RunState struct {
	RunID          string
	SessionID      string
	UserInput      string
	Context        string
	IsModification bool
	PreviousIntent *session.Intent

	fields  map[string]any
	fieldBy map[string]string // field key -> stage that produced it
	Steps   []ThinkingStep
}

func newRunState(runID, sessionID, input, ctx string, isMod bool, prev *session.Intent) *RunState {
	s := &RunState{
		RunID:          runID,
		SessionID:      sessionID,
		UserInput:      input,
		Context:        ctx,
		IsModification: isMod,
		PreviousIntent: prev,
		fields:         make(map[string]any),
		fieldBy:        make(map[string]string),
	}
	for _, stage := range stageOrder {
		s.Steps = append(s.Steps, ThinkingStep{
			ID:     stage,
			Title:  stageTitles[stage],
			Status: StepPending,
		})
	}
	return s
}

// Merge folds a stage's output fields into the run state and returns the
// keys that collided with another stage's output, if any.
func (s *RunState) Merge(stage string, out map[string]any) []string {
	var collisions []string
	for k, v := range out {
		if owner, exists := s.fieldBy[k]; exists && owner != stage {
			collisions = append(collisions, k)
			slog.Warn("run state key collision across stages",
				"run_id", s.RunID, "key", k, "first", owner, "second", stage)
		}
		s.fields[k] = v
		s.fieldBy[k] = stage
	}
	return collisions
}

// Field returns a merged stage output by key.
func (s *RunState) Field(key string) (any, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// StepStarted marks a stage's thinking step active.
func (s *RunState) StepStarted(stage string) {
	s.updateStep(stage, StepActive, "")
}

// StepCompleted marks a stage's thinking step completed with its summary.
func (s *RunState) StepCompleted(stage, summary string) {
	s.updateStep(stage, StepCompleted, summary)
}

func (s *RunState) updateStep(stage, status, description string) {
	for i := range s.Steps {
		if s.Steps[i].ID == stage {
			s.Steps[i].Status = status
			if description != "" {
				s.Steps[i].Description = description
			}
			return
		}
	}
}

// StepsSnapshot returns a copy of the thinking steps for inclusion in events.
func (s *RunState) StepsSnapshot() []ThinkingStep {
	out := make([]ThinkingStep, len(s.Steps))
	copy(out, s.Steps)
	return out
}
