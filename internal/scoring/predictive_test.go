package scoring

import (
	"testing"
	"time"

	"github.com/heatline/core/internal/types"
)

var asOf = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestPredictive_Deterministic(t *testing.T) {
	saleDate := asOf.AddDate(-12, 0, 0)
	in := PredictiveInput{
		AsOf:                    asOf,
		Signals:                 []types.DetectedSignal{sig(types.EventProbate, 9, 30), sig(types.EventTaxLien, 8, 45)},
		OwnershipYears:          fp(12),
		CurrentEquityPercent:    fp(15),
		LoanBalance:             fp(180000),
		EstimatedValue:          fp(250000),
		LastSaleDate:            &saleDate,
		IsAbsentee:              true,
		CurrentDelinquentAmount: fp(12000),
		HistoricalScores:        []int{40, 55, 70},
	}
	a := Predictive(in)
	b := Predictive(in)
	if a.PredictiveScore != b.PredictiveScore || a.DaysUntilDistress != b.DaysUntilDistress || a.Confidence != b.Confidence {
		t.Errorf("same input predicted differently: %+v vs %+v", a, b)
	}
}

func TestPredictive_Ranges(t *testing.T) {
	inputs := []PredictiveInput{
		{AsOf: asOf},
		{AsOf: asOf, Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 5), sig(types.EventPreForeclosure, 9, 10), sig(types.EventTaxLien, 8, 15), sig(types.EventBankruptcy, 8, 20)},
			OwnerAgeKnown: ip(88), CurrentEquityPercent: fp(5), CurrentDelinquentAmount: fp(50000), TaxAssessedValue: fp(60000),
			ForeclosureStage: ForeclosureStageAuction, DefaultAmount: fp(80000), EstimatedValue: fp(120000), IsVacant: true, IsAbsentee: true},
	}
	for i, in := range inputs {
		out := Predictive(in)
		if out.PredictiveScore < 0 || out.PredictiveScore > 100 {
			t.Errorf("input %d: score = %d out of [0,100]", i, out.PredictiveScore)
		}
		if out.Confidence < 15 || out.Confidence > 98 {
			t.Errorf("input %d: confidence = %d out of [15,98]", i, out.Confidence)
		}
		if out.DaysUntilDistress < 7 {
			t.Errorf("input %d: days = %d below the 7-day floor", i, out.DaysUntilDistress)
		}
		for name, sub := range out.Features {
			if sub < 0 || sub > 100 {
				t.Errorf("input %d: feature %s = %v out of [0,100]", i, name, sub)
			}
		}
	}
}

func TestFeatureWeights_SumToOne(t *testing.T) {
	var sum float64
	for _, name := range []string{"ownerAge", "equityBurnRate", "absenteeDuration", "taxDelinquencyTrend", "lifeEventProbability", "signalVelocity", "ownershipStress", "marketExposure"} {
		w := FeatureWeight(name)
		if w <= 0 {
			t.Errorf("feature %s has no weight", name)
		}
		sum += w
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("feature weights sum = %v, want 1.0", sum)
	}
}

func TestInferOwnerAge(t *testing.T) {
	known := Predictive(PredictiveInput{AsOf: asOf, OwnerAgeKnown: ip(70), OwnershipYears: fp(40)})
	if known.OwnerAgeInference == nil || *known.OwnerAgeInference != 70 {
		t.Errorf("known age should win, got %v", known.OwnerAgeInference)
	}

	derived := Predictive(PredictiveInput{AsOf: asOf, OwnershipYears: fp(20)})
	if derived.OwnerAgeInference == nil || *derived.OwnerAgeInference != 53 {
		t.Errorf("derived age = %v, want 33+20 = 53", derived.OwnerAgeInference)
	}

	corporate := Predictive(PredictiveInput{AsOf: asOf, OwnershipYears: fp(20), IsCorporateOwner: true})
	if corporate.OwnerAgeInference != nil {
		t.Errorf("corporate owner should have no inferred age, got %v", corporate.OwnerAgeInference)
	}

	capped := Predictive(PredictiveInput{AsOf: asOf, OwnershipYears: fp(90)})
	if capped.OwnerAgeInference == nil || *capped.OwnerAgeInference != 100 {
		t.Errorf("derived age should clamp to 100, got %v", capped.OwnerAgeInference)
	}
}

func TestOwnerAgeSubScore(t *testing.T) {
	cases := []struct {
		age  *int
		want float64
	}{
		{ip(90), 95}, {ip(80), 82}, {ip(70), 65}, {ip(60), 48}, {ip(50), 35}, {ip(40), 22}, {ip(30), 12}, {nil, 40},
	}
	for _, c := range cases {
		if got := ownerAgeSubScore(c.age); got != c.want {
			t.Errorf("ownerAgeSubScore(%v) = %v, want %v", c.age, got, c.want)
		}
	}
}

func TestEquityBurnRate_Primary(t *testing.T) {
	rate, sub := equityBurnRate(PredictiveInput{
		CurrentEquityPercent: fp(30), PreviousEquityPercent: fp(50), MonthsBetweenEquitySamples: fp(12),
	})
	// (50-30)/12*12/100 = 0.20
	if rate == nil || *rate < 0.199 || *rate > 0.201 {
		t.Fatalf("rate = %v, want 0.20", rate)
	}
	if sub != 95 {
		t.Errorf("sub-score = %v, want 95 at the 0.20 threshold", sub)
	}
}

func TestEquityBurnRate_NegativeClampsToZero(t *testing.T) {
	rate, sub := equityBurnRate(PredictiveInput{
		CurrentEquityPercent: fp(60), PreviousEquityPercent: fp(40), MonthsBetweenEquitySamples: fp(12),
	})
	if rate == nil || *rate != 0 {
		t.Errorf("equity gain should clamp the burn rate to 0, got %v", rate)
	}
	if sub != 10 {
		t.Errorf("sub-score = %v, want 10", sub)
	}
}

func TestEquityBurnRate_Unknown(t *testing.T) {
	rate, sub := equityBurnRate(PredictiveInput{})
	if rate != nil || sub != 20 {
		t.Errorf("unknown burn rate = (%v, %v), want (nil, 20)", rate, sub)
	}
}

func TestAbsenteeDuration(t *testing.T) {
	if _, sub := absenteeDuration(PredictiveInput{AsOf: asOf}); sub != 5 {
		t.Errorf("non-absentee sub-score = %v, want 5", sub)
	}
	if _, sub := absenteeDuration(PredictiveInput{AsOf: asOf, IsAbsentee: true}); sub != 35 {
		t.Errorf("absentee-without-dates sub-score = %v, want 35", sub)
	}

	since := asOf.AddDate(-2, 0, 0)
	days, sub := absenteeDuration(PredictiveInput{AsOf: asOf, IsAbsentee: true, AbsenteeSinceDate: &since, IsVacant: true})
	if days == nil || *days < 725 || *days > 735 {
		t.Errorf("days = %v, want ~730", days)
	}
	// 730/365*30 + 25 = 85
	if sub < 84 || sub > 86 {
		t.Errorf("sub-score = %v, want ~85", sub)
	}
}

func TestTaxDelinquencyTrend(t *testing.T) {
	trend, sub := taxDelinquencyTrend(PredictiveInput{CurrentDelinquentAmount: fp(15000), PreviousDelinquentAmount: fp(10000)})
	if trend == nil || *trend < 0.499 || *trend > 0.501 {
		t.Fatalf("trend = %v, want 0.5", trend)
	}
	if sub != 95 {
		t.Errorf("sub-score = %v, want 95", sub)
	}

	trend, sub = taxDelinquencyTrend(PredictiveInput{CurrentDelinquentAmount: fp(8000), EstimatedValue: fp(100000)})
	if trend == nil || *trend != 0.08 {
		t.Errorf("normalized trend = %v, want 0.08", trend)
	}
	if sub != 40 {
		t.Errorf("sub-score = %v, want 40", sub)
	}

	if trend, sub := taxDelinquencyTrend(PredictiveInput{}); trend != nil || sub != 10 {
		t.Errorf("no delinquency = (%v, %v), want (nil, 10)", trend, sub)
	}
}

func TestDaysUntilDistress_StageTightening(t *testing.T) {
	in := PredictiveInput{ForeclosureStage: ForeclosureStageAuction}
	if days := daysUntilDistress(30, in); days > 14 {
		t.Errorf("auction stage should cap days at 14, got %d", days)
	}
	in.ForeclosureStage = ForeclosureStageNotice
	if days := daysUntilDistress(30, in); days > 45 {
		t.Errorf("notice stage should cap days at 45, got %d", days)
	}
}

func TestDaysUntilDistress_RecentSignalTightening(t *testing.T) {
	quiet := daysUntilDistress(55, PredictiveInput{})
	busy := daysUntilDistress(55, PredictiveInput{Signals: []types.DetectedSignal{
		sig(types.EventTaxLien, 6, 10), sig(types.EventVacant, 5, 20),
	}})
	// base 120, two signals in 30d -> x0.6 = 72
	if quiet != 120 {
		t.Errorf("base days at score 55 = %d, want 120", quiet)
	}
	if busy != 72 {
		t.Errorf("tightened days = %d, want 72", busy)
	}
}

func TestDaysUntilDistress_Floor(t *testing.T) {
	// 14-day base at auction, x0.6 for two fresh signals = 8.4 -> 8,
	// still above the 7-day floor.
	in := PredictiveInput{ForeclosureStage: ForeclosureStageAuction, Signals: []types.DetectedSignal{
		sig(types.EventPreForeclosure, 9, 1), sig(types.EventTaxLien, 8, 2),
	}}
	if days := daysUntilDistress(95, in); days != 8 {
		t.Errorf("days = %d, want 8", days)
	}
	if days := daysUntilDistress(0, PredictiveInput{}); days != 365 {
		t.Errorf("quiet baseline days = %d, want 365", days)
	}
}

func TestPredictiveConfidence_Bounds(t *testing.T) {
	if got := predictiveConfidence(PredictiveInput{}, nil); got != 15 {
		t.Errorf("empty-input confidence = %d, want the 15 floor", got)
	}

	sale := asOf.AddDate(-10, 0, 0)
	full := PredictiveInput{
		AsOf:                    asOf,
		Signals:                 []types.DetectedSignal{sig(types.EventProbate, 9, 10), sig(types.EventTaxLien, 8, 20)},
		CurrentEquityPercent:    fp(20),
		PreviousEquityPercent:   fp(40),
		EstimatedValue:          fp(200000),
		LoanBalance:             fp(150000),
		LastSaleDate:            &sale,
		LastSalePrice:           fp(120000),
		IsAbsentee:              true,
		CurrentDelinquentAmount: fp(9000),
		HistoricalScores:        []int{40, 60},
		ForeclosureStage:        ForeclosureStageNotice,
	}
	if got := predictiveConfidence(full, ip(70)); got != 98 {
		t.Errorf("all-points confidence = %d, want the 98 cap", got)
	}
}

func TestPredictiveLabels(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{90, "imminent"}, {80, "imminent"}, {79, "likely"}, {55, "likely"}, {54, "possible"}, {30, "possible"}, {29, "unlikely"},
	}
	for _, c := range cases {
		if got := predictiveLabel(c.score); got != c.want {
			t.Errorf("label(%d) = %q, want %q", c.score, got, c.want)
		}
	}
}

func TestLifeEventProbability_Stacking(t *testing.T) {
	one := PredictiveInput{Signals: []types.DetectedSignal{sig(types.EventProbate, 9, 30)}}
	four := PredictiveInput{Signals: []types.DetectedSignal{
		sig(types.EventProbate, 9, 30), sig(types.EventDivorce, 7, 40),
		sig(types.EventTaxLien, 8, 50), sig(types.EventBankruptcy, 8, 60),
	}}
	pOne, _ := lifeEventProbability(one, nil)
	pFour, _ := lifeEventProbability(four, nil)
	if pFour <= pOne {
		t.Errorf("stacked signals should raise the probability: %v <= %v", pFour, pOne)
	}
	if pFour > 1.0 {
		t.Errorf("probability = %v, want <= 1.0", pFour)
	}
}
