package rules

import "testing"

type fakeSubject struct {
	id     string
	fields map[string]Value
}

func (f fakeSubject) SubjectID() string { return f.id }

func (f fakeSubject) Field(name string) Value {
	if v, ok := f.fields[name]; ok {
		return v
	}
	return Null()
}

func subject(id string, fields map[string]Value) Subject {
	return fakeSubject{id: id, fields: fields}
}

func TestEvaluateSpendingThreshold(t *testing.T) {
	rule := Rule{Key: "r12m_spending", Operator: ">", Value: String("10000")}

	res := Evaluate([]Subject{
		subject("1", map[string]Value{"r12m_spending": Number(50000)}),
	}, []Rule{rule})
	if res.Count != 1 {
		t.Fatalf("expected numeric 50000 to match textual bound, got count %d", res.Count)
	}

	res = Evaluate([]Subject{
		subject("2", map[string]Value{"r12m_spending": String("abc")}),
	}, []Rule{rule})
	if res.Count != 0 {
		t.Fatalf("expected garbage value to not match, got count %d", res.Count)
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic for unparseable field, got %d", len(res.Diagnostics))
	}
	if res.Diagnostics[0].RecordID != "2" || res.Diagnostics[0].RuleKey != "r12m_spending" {
		t.Errorf("diagnostic misattributed: %+v", res.Diagnostics[0])
	}
}

func TestEvaluateBetweenTextualBounds(t *testing.T) {
	rule := Rule{Key: "age", Operator: "between", Value: Strings("25", "44")}

	res := Evaluate([]Subject{
		subject("a", map[string]Value{"age": Number(30)}),
		subject("b", map[string]Value{"age": Number(50)}),
	}, []Rule{rule})

	if res.Count != 1 || res.Matches[0].Subject.SubjectID() != "a" {
		t.Fatalf("expected only age=30 to match [25,44], got %d matches", res.Count)
	}
}

func TestEvaluateBetweenSwapsInvertedBounds(t *testing.T) {
	rule := Rule{Key: "age", Operator: "between", Value: Strings("44", "25")}
	res := Evaluate([]Subject{
		subject("a", map[string]Value{"age": Number(30)}),
	}, []Rule{rule})
	if res.Count != 1 {
		t.Fatal("inverted bounds should be swapped, not rejected")
	}
}

func TestEvaluateInWrapsScalar(t *testing.T) {
	rule := Rule{Key: "tier", Operator: "in", Value: String("VVIP")}
	res := Evaluate([]Subject{
		subject("a", map[string]Value{"tier": String("VVIP")}),
		subject("b", map[string]Value{"tier": String("VIP")}),
	}, []Rule{rule})
	if res.Count != 1 || res.Matches[0].Subject.SubjectID() != "a" {
		t.Fatalf("scalar in-value should act as a one-element list, got %d matches", res.Count)
	}
}

func TestEvaluateNullFieldCoercesToZero(t *testing.T) {
	res := Evaluate([]Subject{
		subject("a", nil),
	}, []Rule{{Key: "store_visits_90d", Operator: "<", Value: Number(5)}})
	if res.Count != 1 {
		t.Fatal("missing field coerces to 0 and should satisfy < 5")
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("null coercion is not a diagnostic condition: %+v", res.Diagnostics)
	}
}

func TestEvaluateEqualityTypeMismatchIsFalse(t *testing.T) {
	res := Evaluate([]Subject{
		subject("a", map[string]Value{"tier": String("VIP")}),
	}, []Rule{{Key: "tier", Operator: "=", Value: Number(2)}})
	if res.Count != 0 {
		t.Fatal("type mismatch on equality must evaluate false")
	}
	if len(res.Diagnostics) != 0 {
		t.Fatal("type mismatch on equality is not a diagnostic condition")
	}
}

// Property: ordered comparisons over arbitrary string/number/null operand
// combinations always return, never panic.
func TestEvaluateNeverPanics(t *testing.T) {
	operands := []Value{
		Null(), Number(0), Number(-3.5), Number(99999),
		String(""), String("42"), String("abc"), String("  7.5 "),
		Strings("1", "x"), Bool(true),
	}
	ops := []string{">", ">=", "<", "<=", "between", "=", "in", "bogus"}

	for _, op := range ops {
		for _, fv := range operands {
			for _, rv := range operands {
				s := subject("p", map[string]Value{"f": fv})
				res := Evaluate([]Subject{s}, []Rule{{Key: "f", Operator: op, Value: rv}})
				if res.Count != 0 && res.Count != 1 {
					t.Fatalf("op %s: impossible count %d", op, res.Count)
				}
			}
		}
	}
}

func TestFloatCoercionIdempotent(t *testing.T) {
	for _, v := range []Value{Number(12.5), String("12.5"), Null(), Bool(true)} {
		once, ok1 := v.Float()
		if !ok1 {
			t.Fatalf("expected %v to coerce", v)
		}
		twice, ok2 := Number(once).Float()
		if !ok2 || once != twice {
			t.Errorf("coercion not idempotent: %v vs %v", once, twice)
		}
	}
}

func TestRuleOrderDoesNotAffectMembership(t *testing.T) {
	subjects := []Subject{
		subject("a", map[string]Value{"tier": String("VVIP"), "score": Number(95)}),
		subject("b", map[string]Value{"tier": String("VIP"), "score": Number(85)}),
		subject("c", map[string]Value{"tier": String("VVIP"), "score": Number(80)}),
	}
	r1 := Rule{Key: "tier", Operator: "in", Value: Strings("VVIP")}
	r2 := Rule{Key: "score", Operator: ">=", Value: Number(90)}

	fwd := Evaluate(subjects, []Rule{r1, r2})
	rev := Evaluate(subjects, []Rule{r2, r1})
	if fwd.Count != rev.Count || fwd.Count != 1 {
		t.Fatalf("membership depends on rule order: %d vs %d", fwd.Count, rev.Count)
	}
	if fwd.Matches[0].Subject.SubjectID() != "a" {
		t.Errorf("wrong survivor: %s", fwd.Matches[0].Subject.SubjectID())
	}
}

func TestTopRanksByScore(t *testing.T) {
	subjects := []Subject{
		subject("member", map[string]Value{"tier": String("Member"), "score": Number(80), "reason": String("新注册会员")}),
		subject("vvip", map[string]Value{"tier": String("VVIP"), "score": Number(98), "reason": String("购买记录 + 浏览新品")}),
		subject("vip", map[string]Value{"tier": String("VIP"), "score": Number(90), "reason": String("参加品牌活动")}),
	}
	res := Evaluate(subjects, nil)
	top := res.Top(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 ranked matches, got %d", len(top))
	}
	if top[0].Subject.SubjectID() != "vvip" || top[1].Subject.SubjectID() != "vip" {
		t.Errorf("unexpected ranking: %s, %s", top[0].Subject.SubjectID(), top[1].Subject.SubjectID())
	}
	if top[0].Score <= top[1].Score {
		t.Errorf("scores not descending: %f <= %f", top[0].Score, top[1].Score)
	}
}

func TestMatchScoreCapped(t *testing.T) {
	s := subject("x", map[string]Value{
		"tier":   String("VVIP"),
		"score":  Number(100),
		"reason": String("购买 浏览 加购 参加"),
	})
	if got := MatchScore(s); got > 100 {
		t.Errorf("score must cap at 100, got %f", got)
	}
}
