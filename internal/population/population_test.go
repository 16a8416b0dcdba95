package population

import (
	"testing"

	"github.com/corrift/segmentd/internal/rules"
)

func TestSnapshotIsIsolated(t *testing.T) {
	repo := NewRepository()
	first := repo.Snapshot()
	first[0].Tier = "Gold"
	first[0].Features["r12m_spending"] = rules.Number(-1)

	second := repo.Snapshot()
	if second[0].Tier != "VVIP" {
		t.Error("snapshot mutation leaked into the repository")
	}
	if v, _ := second[0].Features["r12m_spending"].Float(); v < 0 {
		t.Error("feature map mutation leaked into the repository")
	}
}

func TestFieldResolution(t *testing.T) {
	repo := NewRepository()
	r := repo.Snapshot()[0]

	if got := r.Field("tier").Text(); got != "VVIP" {
		t.Errorf("tier: %q", got)
	}
	if v, ok := r.Field("score").Float(); !ok || v != 98 {
		t.Errorf("score: %f, %v", v, ok)
	}
	if v, ok := r.Field("r12m_spending").Float(); !ok || v != 680000 {
		t.Errorf("feature lookup: %f, %v", v, ok)
	}
	if !r.Field("nonexistent_field").IsNull() {
		t.Error("unknown field must resolve to null")
	}
}

func TestEvaluateAgainstSnapshot(t *testing.T) {
	repo := NewRepository()
	res := rules.Evaluate(repo.Subjects(), []rules.Rule{
		{Key: "tier", Operator: "in", Value: rules.Strings("VVIP")},
		{Key: "r12m_spending", Operator: ">", Value: rules.String("500000")},
	})
	// VVIPs above 500k: 王女士, 李先生, 赵先生, 吴先生.
	if res.Count != 4 {
		t.Fatalf("expected 4 matches, got %d", res.Count)
	}
}

func TestHighPotentialRanking(t *testing.T) {
	repo := NewRepository()
	top := repo.HighPotential(3)
	if len(top) != 3 {
		t.Fatalf("limit not applied: %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].MatchScore > top[i-1].MatchScore {
			t.Errorf("ranking not descending at %d", i)
		}
	}
	if top[0].Tier != "VVIP" {
		t.Errorf("expected a VVIP on top, got %s", top[0].Tier)
	}
}
