package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/metrics"
	"github.com/corrift/segmentd/internal/population"
	"github.com/corrift/segmentd/internal/rules"
	"github.com/corrift/segmentd/internal/session"
	"github.com/corrift/segmentd/internal/storage"
)

// eventBuffer bounds the per-run event channel. A stalled consumer slows the
// run down rather than losing events.
const eventBuffer = 64

const topAudienceLimit = 10

// Request is one analysis run submission.
type Request struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

// Orchestrator executes the full segmentation pipeline and streams its
// progress. One Run produces one ordered event stream ending in exactly one
// terminal event; the conversation turn is committed only when the run
// reaches workflow_complete.
type Orchestrator struct {
	extractor  *Extractor
	matcher    *Matcher
	strategist *Strategist
	reporter   *Reporter
	predictor  *metrics.Predictor
	sessions   *session.Manager
	pop        *population.Repository
	store      *storage.Store // optional turn/proposal archive
}

func NewOrchestrator(model llm.Chatter, sessions *session.Manager, pop *population.Repository, store *storage.Store) *Orchestrator {
	return &Orchestrator{
		extractor:  NewExtractor(model),
		matcher:    NewMatcher(model),
		strategist: NewStrategist(model),
		reporter:   NewReporter(model),
		predictor:  metrics.NewPredictor(),
		sessions:   sessions,
		pop:        pop,
		store:      store,
	}
}

// Sessions exposes the session manager backing this orchestrator.
func (o *Orchestrator) Sessions() *session.Manager { return o.sessions }

// Population exposes the population repository backing this orchestrator.
func (o *Orchestrator) Population() *population.Repository { return o.pop }

// Predictor exposes the metric predictor backing this orchestrator.
func (o *Orchestrator) Predictor() *metrics.Predictor { return o.predictor }

// Run starts one pipeline execution and returns its event stream. The
// channel is closed after the terminal event. Cancelling ctx stops the run;
// no further events are emitted and no turn is committed.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	ch := make(chan Event, eventBuffer)
	go func() {
		defer close(ch)
		o.run(ctx, req, ch)
	}()
	return ch
}

func (o *Orchestrator) run(ctx context.Context, req Request, ch chan<- Event) {
	sess := o.sessions.GetOrCreate(req.SessionID)
	isMod := o.sessions.ShouldModify(sess.ID, req.Input)
	convCtx := session.BuildContext(sess, req.Input)

	var prev *session.Intent
	if isMod {
		p := sess.Context.Intent.Clone()
		prev = &p
	}
	state := newRunState(uuid.NewString(), sess.ID, req.Input, convCtx, isMod, prev)

	slog.Info("run started",
		"run_id", state.RunID, "session_id", sess.ID,
		"is_modification", isMod, "turns", len(sess.Turns))

	// Stage 1: intent recognition.
	if !o.stageStart(ctx, ch, state, StageIntent) {
		return
	}
	intent, err := o.extractor.Extract(ctx, ExtractInput{
		UserInput:      req.Input,
		Context:        convCtx,
		IsModification: isMod,
		PreviousIntent: prev,
	}, o.reasoner(ctx, ch, state, StageIntent))
	if err != nil {
		o.fail(ctx, ch, state, StageIntent, req.Input, err)
		return
	}
	state.Merge(StageIntent, map[string]any{"intent": intent})
	if !o.stageDone(ctx, ch, state, StageIntent, intentSummary(intent), map[string]any{"intent": intent}) {
		return
	}

	if intent.Clarity == session.ClarityAmbiguous {
		slog.Info("run needs clarification", "run_id", state.RunID, "session_id", sess.ID)
		o.emit(ctx, ch, Event{
			Type:      EventClarification,
			SessionID: sess.ID,
			Response:  clarificationResponse,
			Steps:     state.StepsSnapshot(),
		})
		return
	}

	// Stage 2: feature matching.
	if !o.stageStart(ctx, ch, state, StageMatching) {
		return
	}
	match, err := o.matcher.Match(ctx, intent, o.reasoner(ctx, ch, state, StageMatching))
	if err != nil {
		o.fail(ctx, ch, state, StageMatching, req.Input, err)
		return
	}
	state.Merge(StageMatching, map[string]any{"rules": match.Rules, "match_status": match.Status})
	if !o.stageDone(ctx, ch, state, StageMatching, matchSummary(match), map[string]any{
		"rules":        match.Rules,
		"match_status": match.Status,
	}) {
		return
	}

	if match.Status != MatchSuccess {
		slog.Info("run needs refinement", "run_id", state.RunID, "session_id", sess.ID, "gap", match.Gap)
		o.emit(ctx, ch, Event{
			Type:      EventModification,
			SessionID: sess.ID,
			Response:  refinementResponse(match.Gap),
			Steps:     state.StepsSnapshot(),
		})
		return
	}

	// Stage 3: strategy generation.
	if !o.stageStart(ctx, ch, state, StageStrategy) {
		return
	}
	strategy, err := o.strategist.Compose(ctx, intent, match.Rules, o.reasoner(ctx, ch, state, StageStrategy))
	if err != nil {
		o.fail(ctx, ch, state, StageStrategy, req.Input, err)
		return
	}
	state.Merge(StageStrategy, map[string]any{"strategy": strategy})
	if !o.stageDone(ctx, ch, state, StageStrategy, strategy.Summary, nil) {
		return
	}

	// Stage 4: metric prediction. Pure computation, no model call and no
	// reasoning events.
	if !o.stageStart(ctx, ch, state, StageMetrics) {
		return
	}
	eval := rules.Evaluate(o.pop.Subjects(), match.Rules)
	pred := o.predict(eval)
	state.Merge(StageMetrics, map[string]any{"prediction": pred})
	if !o.stageDone(ctx, ch, state, StageMetrics, metricsSummary(pred), map[string]any{"prediction": pred}) {
		return
	}

	// Stage 5: report composition.
	if !o.stageStart(ctx, ch, state, StageReport) {
		return
	}
	report, err := o.reporter.Compose(ctx, intent, match.Rules, strategy, pred, o.reasoner(ctx, ch, state, StageReport))
	if err != nil {
		o.fail(ctx, ch, state, StageReport, req.Input, err)
		return
	}
	proposal := BuildProposal(intent, match.Rules, pred.AudienceSize)
	state.Merge(StageReport, map[string]any{"report": report, "proposal": proposal})
	if !o.stageDone(ctx, ch, state, StageReport, "圈选报告已生成", nil) {
		return
	}

	outcome := Outcome{
		SessionID:    sess.ID,
		Intent:       intent,
		Proposal:     proposal,
		AudienceSize: pred.AudienceSize,
		TopAudience:  topAudience(eval),
		Metrics:      pred,
		Response:     report,
		Steps:        state.StepsSnapshot(),
	}

	o.commit(sess.ID, req.Input, outcome, eval)

	o.emit(ctx, ch, Event{
		Type:      EventWorkflowComplete,
		SessionID: sess.ID,
		Response:  report,
		Result:    &outcome,
		Steps:     state.StepsSnapshot(),
	})
	slog.Info("run complete",
		"run_id", state.RunID, "session_id", sess.ID,
		"audience_size", pred.AudienceSize)
}

// predict derives the prediction inputs from the evaluation result.
func (o *Orchestrator) predict(eval *rules.Result) metrics.Prediction {
	var scoreSum float64
	tierDist := make(map[string]int)
	for _, m := range eval.Matches {
		if v, ok := m.Subject.Field("score").Float(); ok {
			scoreSum += v
		}
		if tier := m.Subject.Field("tier").Text(); tier != "" {
			tierDist[tier]++
		}
	}
	avg := 0.0
	if eval.Count > 0 {
		avg = scoreSum / float64(eval.Count)
	}
	return o.predictor.Predict(eval.Count, avg, tierDist)
}

// commit appends the completed turn to the session and, when a store is
// configured, archives the turn and proposal. Archive failures are logged
// and never fail the run.
func (o *Orchestrator) commit(sessionID, input string, outcome Outcome, eval *rules.Result) {
	ids := make([]string, 0, len(eval.Matches))
	for _, m := range eval.Matches {
		ids = append(ids, m.Subject.SubjectID())
	}
	turn := session.ConversationTurn{
		UserInput:    input,
		Intent:       outcome.Intent,
		AudienceSize: outcome.AudienceSize,
		AudienceIDs:  ids,
		Metrics:      outcome.Metrics,
		Response:     outcome.Response,
	}
	if err := o.sessions.AddTurn(sessionID, turn); err != nil {
		slog.Warn("turn not committed", "session_id", sessionID, "error", err)
		return
	}
	if o.store == nil {
		return
	}
	intentJSON, _ := json.Marshal(outcome.Intent)
	metricsJSON, _ := json.Marshal(outcome.Metrics)
	if err := o.store.SaveTurn(storage.ArchivedTurn{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		CreatedAt:    time.Now().UTC(),
		UserInput:    input,
		IntentJSON:   string(intentJSON),
		AudienceSize: outcome.AudienceSize,
		MetricsJSON:  string(metricsJSON),
		Response:     outcome.Response,
	}); err != nil {
		slog.Warn("turn archive failed", "session_id", sessionID, "error", err)
	}
	payload, _ := json.Marshal(outcome.Proposal)
	if err := o.store.SaveProposal(storage.StoredProposal{
		ID:          outcome.Proposal.ID,
		SessionID:   sessionID,
		CreatedAt:   time.Now().UTC(),
		PayloadJSON: string(payload),
	}); err != nil {
		slog.Warn("proposal archive failed", "proposal_id", outcome.Proposal.ID, "error", err)
	}
}

// emit delivers one event unless ctx is done. Reports whether the run may
// continue.
func (o *Orchestrator) emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- ev:
		return true
	}
}

func (o *Orchestrator) stageStart(ctx context.Context, ch chan<- Event, state *RunState, stage string) bool {
	state.StepStarted(stage)
	return o.emit(ctx, ch, Event{
		Type:      EventNodeStart,
		SessionID: state.SessionID,
		Stage:     stage,
		Title:     stageTitles[stage],
		Steps:     state.StepsSnapshot(),
	})
}

func (o *Orchestrator) stageDone(ctx context.Context, ch chan<- Event, state *RunState, stage, summary string, fields map[string]any) bool {
	state.StepCompleted(stage, summary)
	return o.emit(ctx, ch, Event{
		Type:      EventNodeComplete,
		SessionID: state.SessionID,
		Stage:     stage,
		Title:     stageTitles[stage],
		Summary:   summary,
		Fields:    fields,
		Steps:     state.StepsSnapshot(),
	})
}

// reasoner adapts model stream deltas into reasoning events. A cancelled ctx
// surfaces as an error so the model stream aborts promptly.
func (o *Orchestrator) reasoner(ctx context.Context, ch chan<- Event, state *RunState, stage string) func(string) error {
	return func(delta string) error {
		if delta == "" {
			return nil
		}
		if !o.emit(ctx, ch, Event{
			Type:      EventReasoning,
			SessionID: state.SessionID,
			Stage:     stage,
			Delta:     delta,
		}) {
			return ctx.Err()
		}
		return nil
	}
}

// fail emits the error terminal. The original input rides along so the
// caller can resubmit it, and the diagnostic id correlates with server logs.
func (o *Orchestrator) fail(ctx context.Context, ch chan<- Event, state *RunState, stage, input string, err error) {
	diagID := uuid.NewString()
	slog.Error("run failed",
		"run_id", state.RunID, "session_id", state.SessionID,
		"stage", stage, "diagnostic_id", diagID, "error", err)
	o.emit(ctx, ch, Event{
		Type:      EventError,
		SessionID: state.SessionID,
		Stage:     stage,
		Message:   fmt.Sprintf("%s阶段处理失败，请重试（诊断编号 %s）", stageTitles[stage], diagID),
		Fields: map[string]any{
			"diagnostic_id": diagID,
			"user_input":    input,
		},
		Steps: state.StepsSnapshot(),
	})
}

const clarificationResponse = "您的需求还不够明确，请补充以下信息后再试：\n1. 营销目标（如提升复购、新品推广、客户召回）\n2. 目标人群特征（如会员等级、消费行为、年龄段）\n3. 其他约束条件（如人数上限、城市范围）"

func refinementResponse(gap string) string {
	if gap == "" {
		gap = "部分筛选条件无法映射到人群特征"
	}
	return fmt.Sprintf("当前条件无法完全落地：%s。请调整描述或换一种筛选方式后重试。", gap)
}

func topAudience(eval *rules.Result) []AudienceMember {
	top := eval.Top(topAudienceLimit)
	out := make([]AudienceMember, 0, len(top))
	for _, m := range top {
		out = append(out, AudienceMember{
			ID:         m.Subject.SubjectID(),
			Name:       m.Subject.Field("name").Text(),
			Tier:       m.Subject.Field("tier").Text(),
			MatchScore: m.Score,
			Reason:     m.Subject.Field("reason").Text(),
		})
	}
	return out
}

func intentSummary(i session.Intent) string {
	goal := i.BusinessGoal
	if goal == "" {
		goal = "未明确"
	}
	return fmt.Sprintf("识别到营销目标：%s，目标人群条件 %d 项", goal,
		len(i.TargetTiers)+len(i.BehaviorFilters)+len(i.Constraints))
}

func matchSummary(m MatchResult) string {
	if m.Status != MatchSuccess {
		return "特征匹配存在缺口，需要调整条件"
	}
	return fmt.Sprintf("已生成 %d 条圈选规则", len(m.Rules))
}

func metricsSummary(p metrics.Prediction) string {
	return fmt.Sprintf("预计圈选 %d 人，预估转化率 %.1f%%", p.AudienceSize, p.ConversionRate*100)
}
