package scoring

import (
	"testing"

	"github.com/heatline/core/internal/types"
)

func sig(et types.EventType, severity, days int) types.DetectedSignal {
	return types.DetectedSignal{EventType: et, Severity: severity, DaysSinceEvent: days}
}

func TestRetrospective_Deterministic(t *testing.T) {
	in := RetrospectiveInput{
		Signals:                  []types.DetectedSignal{sig(types.EventProbate, 9, 30), sig(types.EventVacant, 6, 60)},
		OwnerFlags:               types.OwnerFlags{Inherited: true, Elderly: true},
		EquityPercent:            72,
		CompRatio:                1.35,
		HistoricalConversionRate: 0.82,
	}
	a := Retrospective(in)
	b := Retrospective(in)
	if a.CompositeScore != b.CompositeScore || a.MotivationScore != b.MotivationScore || a.DealScore != b.DealScore {
		t.Errorf("same input scored differently: %+v vs %+v", a, b)
	}
	if len(a.Factors) != len(b.Factors) {
		t.Errorf("factor count differs between runs")
	}
}

func TestRetrospective_EmptySignalBaseline(t *testing.T) {
	// A property with only the detection fallback: one absentee signal at
	// severity 3, 180 days out, 50% equity, compRatio 1.1, conversion 0.5.
	out := Retrospective(RetrospectiveInput{
		Signals:                  []types.DetectedSignal{sig(types.EventAbsentee, 3, 180)},
		EquityPercent:            50,
		CompRatio:                1.1,
		HistoricalConversionRate: 0.5,
	})
	if out.CompositeScore < 25 || out.CompositeScore > 32 {
		t.Errorf("composite = %d, want within [25, 32]", out.CompositeScore)
	}
	if out.AIBoost != 8 {
		t.Errorf("ai boost = %v, want round(0.5*15) = 8", out.AIBoost)
	}
	if out.Label != "cold" {
		t.Errorf("label = %q, want cold", out.Label)
	}
}

func TestRetrospective_StackedHighDistress(t *testing.T) {
	out := Retrospective(RetrospectiveInput{
		Signals:                  []types.DetectedSignal{sig(types.EventProbate, 9, 30), sig(types.EventVacant, 6, 60)},
		OwnerFlags:               types.OwnerFlags{Inherited: true, Elderly: true},
		EquityPercent:            72,
		CompRatio:                1.35,
		HistoricalConversionRate: 0.82,
	})
	if out.StackingBonus != 6 {
		t.Errorf("stacking bonus = %v, want 6 for two signals", out.StackingBonus)
	}
	if out.AIBoost != 12 {
		t.Errorf("ai boost = %v, want round(0.82*15) = 12", out.AIBoost)
	}
	if out.OwnerFactorScore != 12 {
		t.Errorf("owner factors = %v, want inherited(8)+elderly(4) = 12", out.OwnerFactorScore)
	}
	if out.CompositeScore < 80 || out.CompositeScore > 90 {
		t.Errorf("composite = %d, want a hot-or-better score in [80, 90]", out.CompositeScore)
	}
	if out.SeverityMultiplier != 1.8 {
		t.Errorf("severity multiplier = %v, want the max tier 1.8", out.SeverityMultiplier)
	}
}

func TestRetrospective_Ranges(t *testing.T) {
	inputs := []RetrospectiveInput{
		{},
		{EquityPercent: -50},
		{EquityPercent: 100, CompRatio: 3, HistoricalConversionRate: 1,
			Signals: []types.DetectedSignal{
				sig(types.EventWaterShutoff, 10, 1), sig(types.EventProbate, 9, 1),
				sig(types.EventPreForeclosure, 9, 1), sig(types.EventTaxLien, 8, 1), sig(types.EventBankruptcy, 8, 1),
			},
			OwnerFlags: types.OwnerFlags{Absentee: true, Inherited: true, Elderly: true, OutOfState: true}},
	}
	for i, in := range inputs {
		out := Retrospective(in)
		for name, v := range map[string]int{"composite": out.CompositeScore, "motivation": out.MotivationScore, "deal": out.DealScore} {
			if v < 0 || v > 100 {
				t.Errorf("input %d: %s = %d out of [0,100]", i, name, v)
			}
		}
	}
}

// Adding a signal can only raise the summed per-signal contribution.
func TestRetrospective_SignalMonotonicity(t *testing.T) {
	base := []types.DetectedSignal{sig(types.EventTaxLien, 6, 90)}
	more := append([]types.DetectedSignal{}, base...)
	more = append(more, sig(types.EventVacant, 5, 60))

	sum := func(signals []types.DetectedSignal) float64 {
		out := Retrospective(RetrospectiveInput{Signals: signals})
		var total float64
		for i := range signals {
			total += out.Factors[i].Contribution
		}
		return total
	}
	if sum(more) < sum(base) {
		t.Errorf("adding a signal lowered the base signal contribution: %v < %v", sum(more), sum(base))
	}
}

func TestRetrospective_ConversionRateMonotonicity(t *testing.T) {
	in := RetrospectiveInput{Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 30)}, EquityPercent: 40}
	low, high := in, in
	low.HistoricalConversionRate = 0.1
	high.HistoricalConversionRate = 0.9
	if Retrospective(high).CompositeScore < Retrospective(low).CompositeScore {
		t.Error("raising conversion rate lowered the composite")
	}
}

// Doubling every signal's age can only lower or hold the composite.
func TestRetrospective_RecencyMonotonicity(t *testing.T) {
	fresh := RetrospectiveInput{Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 20), sig(types.EventTaxLien, 8, 45)}}
	stale := RetrospectiveInput{Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 40), sig(types.EventTaxLien, 8, 90)}}
	if Retrospective(stale).CompositeScore > Retrospective(fresh).CompositeScore {
		t.Error("doubling signal age raised the composite")
	}
}

func TestRetrospective_Labels(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, "fire"}, {85, "fire"}, {84, "hot"}, {65, "hot"}, {64, "warm"}, {40, "warm"}, {39, "cold"}, {0, "cold"},
	}
	for _, c := range cases {
		if got := retrospectiveLabel(c.score); got != c.want {
			t.Errorf("label(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestRetrospective_FactorOrder(t *testing.T) {
	out := Retrospective(RetrospectiveInput{
		Signals:                  []types.DetectedSignal{sig(types.EventProbate, 9, 30), sig(types.EventVacant, 5, 60)},
		OwnerFlags:               types.OwnerFlags{Absentee: true},
		EquityPercent:            50,
		CompRatio:                1.2,
		HistoricalConversionRate: 0.4,
	})
	wantOrder := []string{"probate", "vacant", "stacking_bonus", "owner_factors", "equity", "comp_ratio", "ai_boost"}
	if len(out.Factors) != len(wantOrder) {
		t.Fatalf("got %d factors, want %d", len(out.Factors), len(wantOrder))
	}
	for i, name := range wantOrder {
		if out.Factors[i].Name != name {
			t.Errorf("factors[%d] = %q, want %q", i, out.Factors[i].Name, name)
		}
	}
}

func TestRetrospective_ZeroFactorsOmitted(t *testing.T) {
	out := Retrospective(RetrospectiveInput{Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 30)}})
	for _, f := range out.Factors {
		switch f.Name {
		case "stacking_bonus", "owner_factors", "equity", "comp_ratio", "ai_boost":
			t.Errorf("zero-valued aggregate factor %q should be omitted", f.Name)
		}
	}
}

func TestSeverityTiers(t *testing.T) {
	cases := []struct {
		sev  int
		want float64
	}{
		{0, 1.0}, {2, 1.0}, {3, 1.25}, {5, 1.25}, {6, 1.5}, {8, 1.5}, {9, 1.8}, {10, 1.8},
	}
	for _, c := range cases {
		if got := SeverityMultiplier(c.sev); got != c.want {
			t.Errorf("SeverityMultiplier(%d) = %v, want %v", c.sev, got, c.want)
		}
	}
}

func TestStackingBonusTiers(t *testing.T) {
	cases := []struct {
		count int
		want  float64
	}{
		{0, 0}, {1, 0}, {2, 6}, {3, 14}, {4, 22}, {5, 30}, {9, 30},
	}
	for _, c := range cases {
		if got := StackingBonus(c.count); got != c.want {
			t.Errorf("StackingBonus(%d) = %v, want %v", c.count, got, c.want)
		}
	}
}

func TestRecencyDecay_ClampsAt365(t *testing.T) {
	if RecencyDecay(365) != RecencyDecay(1000) {
		t.Error("decay should flatten beyond 365 days")
	}
	if RecencyDecay(0) != 1.0 {
		t.Errorf("decay(0) = %v, want 1.0", RecencyDecay(0))
	}
}
