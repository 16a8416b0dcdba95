package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrationsApplied(t *testing.T) {
	s := openTestStore(t)
	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Fatalf("expected migration 1 applied, got %v", versions)
	}
}

func TestSaveAndListTurns(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	for i, input := range []string{"圈选VVIP", "只要女性客户"} {
		err := s.SaveTurn(ArchivedTurn{
			ID:           string(rune('a' + i)),
			SessionID:    "s1",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			UserInput:    input,
			IntentJSON:   `{"clarity":"clear"}`,
			AudienceSize: 5 + i,
			MetricsJSON:  `{"roi":305}`,
			Response:     "done",
		})
		if err != nil {
			t.Fatalf("SaveTurn: %v", err)
		}
	}
	// A different session's turn must not leak into the listing.
	if err := s.SaveTurn(ArchivedTurn{ID: "z", SessionID: "s2", CreatedAt: base, UserInput: "其他会话"}); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	turns, err := s.ListTurns("s1", 10)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].UserInput != "圈选VVIP" || turns[1].UserInput != "只要女性客户" {
		t.Errorf("turns out of order: %+v", turns)
	}
	if turns[1].AudienceSize != 6 {
		t.Errorf("audience size: %d", turns[1].AudienceSize)
	}
	if !turns[0].CreatedAt.Equal(base) {
		t.Errorf("created_at round trip: %v", turns[0].CreatedAt)
	}
}

func TestProposalRoundTrip(t *testing.T) {
	s := openTestStore(t)

	p := StoredProposal{
		ID:          "prop-1",
		SessionID:   "s1",
		CreatedAt:   time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
		PayloadJSON: `{"marketing_goal":"提升复购"}`,
	}
	if err := s.SaveProposal(p); err != nil {
		t.Fatalf("SaveProposal: %v", err)
	}

	got, err := s.GetProposal("prop-1")
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if got.PayloadJSON != p.PayloadJSON || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := s.GetProposal("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	list, err := s.ListProposals(5)
	if err != nil {
		t.Fatalf("ListProposals: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 proposal, got %d", len(list))
	}
}
