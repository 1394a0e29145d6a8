package scoring

import (
	"math"

	"github.com/heatline/core/internal/types"
)

// RetrospectiveInput is (signals + owner + equity context) feeding the
// retrospective scorer.
type RetrospectiveInput struct {
	Signals                  []types.DetectedSignal
	OwnerFlags               types.OwnerFlags
	EquityPercent            float64
	CompRatio                float64
	HistoricalConversionRate float64
}

// RetrospectiveOutput is everything a ScoringRecord row needs
// besides id/property_id/created_at.
type RetrospectiveOutput struct {
	ModelVersion       string
	CompositeScore     int
	MotivationScore    int
	DealScore          int
	SeverityMultiplier float64
	RecencyDecay       float64
	StackingBonus      float64
	OwnerFactorScore   float64
	EquityFactorScore  float64
	AIBoost            float64
	Label              string
	Factors            []types.Factor
}

// Retrospective computes the v2.0 composite/motivation/deal scores. It
// is a pure, total function: it never errors, and the same input always
// yields the same output.
func Retrospective(in RetrospectiveInput) RetrospectiveOutput {
	var baseSignalScore float64
	weightedSeverity := 1.0
	weightedRecency := 1.0

	if len(in.Signals) > 0 {
		weightedSeverity = 0
		weightedRecency = math.Inf(1)
		for _, s := range in.Signals {
			sevMult := SeverityMultiplier(s.Severity)
			recDecay := RecencyDecay(s.DaysSinceEvent)
			weight := SignalWeight(s.EventType)
			baseSignalScore += weight * sevMult * recDecay
			if sevMult > weightedSeverity {
				weightedSeverity = sevMult
			}
			if recDecay < weightedRecency {
				weightedRecency = recDecay
			}
		}
	}

	stacking := StackingBonus(len(in.Signals))
	ownerFactors := OwnerFactorSum(in.OwnerFlags)
	equityTerm := in.EquityPercent * 0.15
	compRatioTerm := in.CompRatio * 0.10 * 100
	aiBoost := AIBoost(in.HistoricalConversionRate)

	compositeRaw := baseSignalScore*weightedSeverity*weightedRecency + stacking + ownerFactors + equityTerm + compRatioTerm + aiBoost
	composite := clampInt(int(roundHalfAwayFromZero(compositeRaw)), 0, 100)

	motivationRaw := baseSignalScore * weightedRecency * 1.2
	motivation := clampInt(int(roundHalfAwayFromZero(motivationRaw)), 0, 100)

	dealRaw := (equityTerm+compRatioTerm)*2 + aiBoost + stacking*0.5
	deal := clampInt(int(roundHalfAwayFromZero(dealRaw)), 0, 100)

	label := retrospectiveLabel(composite)

	factors := make([]types.Factor, 0, len(in.Signals)+5)
	for _, s := range in.Signals {
		weight := SignalWeight(s.EventType)
		contribution := weight * SeverityMultiplier(s.Severity) * RecencyDecay(s.DaysSinceEvent)
		factors = append(factors, types.Factor{
			Name:         string(s.EventType),
			Value:        weight,
			Contribution: roundTo(contribution, 0.1),
		})
	}
	if stacking != 0 {
		factors = append(factors, types.Factor{Name: "stacking_bonus", Value: float64(len(in.Signals)), Contribution: stacking})
	}
	if ownerFactors != 0 {
		factors = append(factors, types.Factor{Name: "owner_factors", Value: ownerFactors, Contribution: ownerFactors})
	}
	if equityTerm != 0 {
		factors = append(factors, types.Factor{Name: "equity", Value: in.EquityPercent, Contribution: equityTerm})
	}
	if compRatioTerm != 0 {
		factors = append(factors, types.Factor{Name: "comp_ratio", Value: in.CompRatio, Contribution: compRatioTerm})
	}
	if aiBoost != 0 {
		factors = append(factors, types.Factor{Name: "ai_boost", Value: in.HistoricalConversionRate, Contribution: aiBoost})
	}

	return RetrospectiveOutput{
		ModelVersion:       RetrospectiveModelVersion,
		CompositeScore:     composite,
		MotivationScore:    motivation,
		DealScore:          deal,
		SeverityMultiplier: weightedSeverity,
		RecencyDecay:       weightedRecency,
		StackingBonus:      stacking,
		OwnerFactorScore:   ownerFactors,
		EquityFactorScore:  equityTerm + compRatioTerm,
		AIBoost:            aiBoost,
		Label:              label,
		Factors:            factors,
	}
}

func retrospectiveLabel(composite int) string {
	switch {
	case composite >= 85:
		return "fire"
	case composite >= 65:
		return "hot"
	case composite >= 40:
		return "warm"
	default:
		return "cold"
	}
}

func roundTo(v, nearest float64) float64 {
	return roundHalfAwayFromZero(v/nearest) * nearest
}
