package workflow

import (
	"context"
	"testing"

	"github.com/corrift/segmentd/internal/llm"
	"github.com/corrift/segmentd/internal/population"
	"github.com/corrift/segmentd/internal/session"
)

func newTestOrchestrator(model llm.Chatter) (*Orchestrator, *session.Manager) {
	sessions := session.NewManager()
	return NewOrchestrator(model, sessions, population.NewRepository(), nil), sessions
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func terminalOf(t *testing.T, events []Event) Event {
	t.Helper()
	var term []Event
	for _, ev := range events {
		if ev.Type.Terminal() {
			term = append(term, ev)
		}
	}
	if len(term) != 1 {
		t.Fatalf("got %d terminal events, want exactly 1: %+v", len(term), term)
	}
	if !events[len(events)-1].Type.Terminal() {
		t.Fatal("terminal event is not last in the stream")
	}
	return term[0]
}

func TestRunHappyPathEventOrder(t *testing.T) {
	o, sessions := newTestOrchestrator(llm.NewMockModel())
	sess := sessions.Create()

	events := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "帮我圈一批VVIP客户，提升复购"}))
	term := terminalOf(t, events)

	if term.Type != EventWorkflowComplete {
		t.Fatalf("terminal = %s, want workflow_complete (message: %s)", term.Type, term.Message)
	}

	// Each stage opens before it closes, stages run in pipeline order, and
	// reasoning deltas stay inside their stage.
	open := ""
	var seen []string
	for _, ev := range events {
		switch ev.Type {
		case EventNodeStart:
			if open != "" {
				t.Fatalf("stage %s started while %s still open", ev.Stage, open)
			}
			open = ev.Stage
			seen = append(seen, ev.Stage)
		case EventNodeComplete:
			if ev.Stage != open {
				t.Fatalf("stage %s completed while %s open", ev.Stage, open)
			}
			open = ""
		case EventReasoning:
			if ev.Stage != open {
				t.Fatalf("reasoning for %s emitted outside its stage (open: %s)", ev.Stage, open)
			}
		}
	}
	want := []string{StageIntent, StageMatching, StageStrategy, StageMetrics, StageReport}
	if len(seen) != len(want) {
		t.Fatalf("executed stages = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("stage[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	out := term.Result
	if out == nil {
		t.Fatal("workflow_complete missing result payload")
	}
	if out.AudienceSize != 5 {
		t.Errorf("AudienceSize = %d, want the 5 VVIP records", out.AudienceSize)
	}
	if len(out.TopAudience) != 5 {
		t.Errorf("TopAudience = %d members, want 5", len(out.TopAudience))
	}
	if out.Metrics.ConversionRate != 0.09 {
		t.Errorf("ConversionRate = %v, want 0.09 for a small audience", out.Metrics.ConversionRate)
	}
	if out.Proposal.ID == "" || len(out.Proposal.TargetTraits) == 0 {
		t.Errorf("proposal incomplete: %+v", out.Proposal)
	}
	for _, step := range out.Steps {
		if step.Status != StepCompleted {
			t.Errorf("step %s status = %s, want completed", step.ID, step.Status)
		}
	}
}

func TestRunCommitsExactlyOneTurn(t *testing.T) {
	o, sessions := newTestOrchestrator(llm.NewMockModel())
	sess := sessions.Create()

	events := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "为VVIP客户做新品推广"}))
	if terminalOf(t, events).Type != EventWorkflowComplete {
		t.Fatal("run did not complete")
	}

	got, ok := sessions.Get(sess.ID)
	if !ok {
		t.Fatal("session disappeared")
	}
	if len(got.Turns) != 1 {
		t.Fatalf("turns = %d, want 1", len(got.Turns))
	}
	turn := got.Turns[0]
	if turn.AudienceSize != 5 || len(turn.AudienceIDs) != 5 {
		t.Errorf("turn audience = %d/%d ids, want 5/5", turn.AudienceSize, len(turn.AudienceIDs))
	}
	if turn.Response == "" {
		t.Error("turn missing response text")
	}
}

func TestRunAmbiguousInputEndsInClarification(t *testing.T) {
	o, sessions := newTestOrchestrator(llm.NewMockModel())
	sess := sessions.Create()

	events := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "帮我圈选一些用户"}))
	term := terminalOf(t, events)

	if term.Type != EventClarification {
		t.Fatalf("terminal = %s, want clarification", term.Type)
	}
	if term.Response == "" {
		t.Error("clarification missing guidance text")
	}
	for _, ev := range events {
		if ev.Type == EventNodeStart && ev.Stage != StageIntent {
			t.Errorf("stage %s ran after an ambiguous intent", ev.Stage)
		}
	}
	if got, _ := sessions.Get(sess.ID); len(got.Turns) != 0 {
		t.Errorf("turns = %d, want 0 after clarification", len(got.Turns))
	}
}

func TestRunUnmappableConceptEndsInModification(t *testing.T) {
	model := &scriptModel{
		intents: []string{`{"business_goal":"会员召回","clarity":"clear"}`},
		match:   `{"rules":[{"key":"star_sign","operator":"==","value":"天蝎座"}],"match_status":"success"}`,
	}
	o, sessions := newTestOrchestrator(model)
	sess := sessions.Create()

	events := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "召回天蝎座客户"}))
	term := terminalOf(t, events)

	if term.Type != EventModification {
		t.Fatalf("terminal = %s, want modification", term.Type)
	}
	if term.Response == "" {
		t.Error("modification terminal missing gap guidance")
	}
	for _, ev := range events {
		if ev.Type == EventNodeStart && ev.Stage == StageStrategy {
			t.Error("strategy stage ran despite a matching gap")
		}
	}
	if got, _ := sessions.Get(sess.ID); len(got.Turns) != 0 {
		t.Errorf("turns = %d, want 0 after modification terminal", len(got.Turns))
	}
}

func TestRunExtractionFailurePreservesInput(t *testing.T) {
	model := &scriptModel{intents: []string{"没有结构化内容"}}
	o, sessions := newTestOrchestrator(model)
	sess := sessions.Create()

	const input = "提升高价值客户复购"
	events := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: input}))
	term := terminalOf(t, events)

	if term.Type != EventError {
		t.Fatalf("terminal = %s, want error", term.Type)
	}
	if term.Fields["user_input"] != input {
		t.Errorf("error terminal user_input = %v, want original input", term.Fields["user_input"])
	}
	if term.Fields["diagnostic_id"] == "" || term.Fields["diagnostic_id"] == nil {
		t.Error("error terminal missing diagnostic id")
	}
	if got, _ := sessions.Get(sess.ID); len(got.Turns) != 0 {
		t.Errorf("turns = %d, want 0 after error", len(got.Turns))
	}
}

func TestRunIncrementalTurnCarriesPreviousIntent(t *testing.T) {
	model := &scriptModel{
		intents: []string{
			`{"business_goal":"新品手袋推广","kpi":"conversion","target_tiers":["VVIP"],"constraints":["仅限一线城市"],"clarity":"clear"}`,
			`{"constraints":["近30天到店"]}`,
		},
		match: `{"rules":[{"key":"tier","operator":"in","value":["VVIP"]}],"match_status":"success"}`,
	}
	o, sessions := newTestOrchestrator(model)
	sess := sessions.Create()

	first := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "为VVIP做新品手袋推广，仅限一线城市"}))
	if terminalOf(t, first).Type != EventWorkflowComplete {
		t.Fatal("first run did not complete")
	}

	second := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "增加近30天到店的条件"}))
	term := terminalOf(t, second)
	if term.Type != EventWorkflowComplete {
		t.Fatalf("second run terminal = %s, want workflow_complete", term.Type)
	}

	intent := term.Result.Intent
	if intent.BusinessGoal != "新品手袋推广" {
		t.Errorf("BusinessGoal = %q, want carried over from turn one", intent.BusinessGoal)
	}
	if len(intent.TargetTiers) != 1 || intent.TargetTiers[0] != "VVIP" {
		t.Errorf("TargetTiers = %v, want carried over [VVIP]", intent.TargetTiers)
	}
	wantConstraints := []string{"仅限一线城市", "近30天到店"}
	if len(intent.Constraints) != len(wantConstraints) {
		t.Fatalf("Constraints = %v, want %v", intent.Constraints, wantConstraints)
	}
	for i := range wantConstraints {
		if intent.Constraints[i] != wantConstraints[i] {
			t.Errorf("Constraints[%d] = %q, want %q", i, intent.Constraints[i], wantConstraints[i])
		}
	}

	got, _ := sessions.Get(sess.ID)
	if len(got.Turns) != 2 {
		t.Errorf("turns = %d, want 2", len(got.Turns))
	}
	if len(got.Context.Constraints) != 2 {
		t.Errorf("accumulated constraints = %v, want both", got.Context.Constraints)
	}
}

func TestRunNarrowingTurnShrinksTierSet(t *testing.T) {
	o, sessions := newTestOrchestrator(llm.NewMockModel())
	sess := sessions.Create()

	first := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "圈选VVIP和VIP客户，提升复购"}))
	firstTerm := terminalOf(t, first)
	if firstTerm.Type != EventWorkflowComplete {
		t.Fatalf("first run terminal = %s, want workflow_complete", firstTerm.Type)
	}
	if firstTerm.Result.AudienceSize != 11 {
		t.Fatalf("first run AudienceSize = %d, want all 11 VVIP+VIP records", firstTerm.Result.AudienceSize)
	}

	second := collect(t, o.Run(context.Background(), Request{SessionID: sess.ID, Input: "只要VVIP"}))
	term := terminalOf(t, second)
	if term.Type != EventWorkflowComplete {
		t.Fatalf("second run terminal = %s, want workflow_complete", term.Type)
	}

	// The narrowing mention replaces the tier set wholesale. History tiers
	// from turn one must not bleed back into the merged intent.
	if tiers := term.Result.Intent.TargetTiers; len(tiers) != 1 || tiers[0] != "VVIP" {
		t.Errorf("TargetTiers = %v, want narrowed to [VVIP]", tiers)
	}
	if term.Result.AudienceSize != 5 {
		t.Errorf("AudienceSize = %d, want the 5 VVIP records", term.Result.AudienceSize)
	}

	got, _ := sessions.Get(sess.ID)
	if tiers := got.Context.Intent.TargetTiers; len(tiers) != 1 || tiers[0] != "VVIP" {
		t.Errorf("session context tiers = %v, want [VVIP]", tiers)
	}
}

// blockingModel parks every call until the context is cancelled.
type blockingModel struct{}

func (blockingModel) Chat(ctx context.Context, _ llm.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingModel) ChatStream(ctx context.Context, _ llm.Request, _ func(string) error) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestRunCancelledContextStopsStream(t *testing.T) {
	o, sessions := newTestOrchestrator(blockingModel{})
	sess := sessions.Create()

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Run(ctx, Request{SessionID: sess.ID, Input: "帮我圈一批VVIP客户，提升复购"})

	// The intent stage opens, then parks inside the model call.
	first, ok := <-ch
	if !ok {
		t.Fatal("stream closed before any event")
	}
	if first.Type != EventNodeStart || first.Stage != StageIntent {
		t.Fatalf("first event = %s/%s, want node_start/intent", first.Type, first.Stage)
	}
	cancel()

	for ev := range ch {
		if ev.Type.Terminal() {
			t.Errorf("terminal %s emitted after cancellation", ev.Type)
		}
	}
	if got, _ := sessions.Get(sess.ID); len(got.Turns) != 0 {
		t.Errorf("turns = %d, want 0 after cancellation", len(got.Turns))
	}
}

func TestRunUnknownSessionIDCreatesSession(t *testing.T) {
	o, _ := newTestOrchestrator(llm.NewMockModel())

	events := collect(t, o.Run(context.Background(), Request{SessionID: "ghost", Input: "为VVIP客户做新品推广"}))
	term := terminalOf(t, events)
	if term.Type != EventWorkflowComplete {
		t.Fatalf("terminal = %s, want workflow_complete", term.Type)
	}
	if term.SessionID != "ghost" {
		t.Errorf("SessionID = %q, want ghost", term.SessionID)
	}
}
