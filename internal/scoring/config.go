// Package scoring implements the two-tier deterministic scoring model
// (retrospective and predictive) and the blender. All weight tables
// below are immutable data, not code — changing any of them requires a
// new model_version, so they're declared once here and never touched at
// runtime.
package scoring

import (
	"math"

	"github.com/heatline/core/internal/types"
)

// RetrospectiveModelVersion tags every ScoringRecord produced by this
// configuration.
const RetrospectiveModelVersion = "v2.0"

// PredictiveModelVersion tags every Prediction produced by this
// configuration.
const PredictiveModelVersion = "pred-v2.0"

// signalWeights are the per-event-type base weights.
var signalWeights = map[types.EventType]float64{
	types.EventProbate:        28,
	types.EventPreForeclosure: 26,
	types.EventTaxLien:        22,
	types.EventBankruptcy:     24,
	types.EventInherited:      25,
	types.EventDivorce:        20,
	types.EventFSBO:           16,
	types.EventCodeViolation:  14,
	types.EventVacant:         12,
	types.EventAbsentee:       10,
	types.EventWaterShutoff:   35,
}

// SignalWeight returns the configured base weight for an event type, or 0
// if the type is unrecognized.
func SignalWeight(et types.EventType) float64 {
	return signalWeights[et]
}

// SeverityMultiplier maps a 0-10 severity into its tiered multiplier.
func SeverityMultiplier(severity int) float64 {
	switch {
	case severity >= 9:
		return 1.8
	case severity >= 6:
		return 1.5
	case severity >= 3:
		return 1.25
	default:
		return 1.0
	}
}

// RecencyDecay is exp(-0.015 * min(days, 365)).
func RecencyDecay(days int) float64 {
	if days > 365 {
		days = 365
	}
	if days < 0 {
		days = 0
	}
	return math.Exp(-0.015 * float64(days))
}

// StackingBonus maps a signal count to the largest applicable stacking
// bonus.
func StackingBonus(count int) float64 {
	switch {
	case count >= 5:
		return 30
	case count >= 4:
		return 22
	case count >= 3:
		return 14
	case count >= 2:
		return 6
	default:
		return 0
	}
}

// OwnerFactorWeights are the per-flag additive owner-quality
// adjustments.
var OwnerFactorWeights = struct {
	Absentee, Corporate, Inherited, Elderly, OutOfState float64
}{
	Absentee:   5,
	Corporate:  -3,
	Inherited:  8,
	Elderly:    4,
	OutOfState: 6,
}

// OwnerFactorSum sums the configured owner-flag adjustments that apply.
func OwnerFactorSum(flags types.OwnerFlags) float64 {
	var sum float64
	if flags.Absentee {
		sum += OwnerFactorWeights.Absentee
	}
	if flags.Corporate {
		sum += OwnerFactorWeights.Corporate
	}
	if flags.Inherited {
		sum += OwnerFactorWeights.Inherited
	}
	if flags.Elderly {
		sum += OwnerFactorWeights.Elderly
	}
	if flags.OutOfState {
		sum += OwnerFactorWeights.OutOfState
	}
	return sum
}

// EquityFactor is equity_percent * 0.15 + compRatio * 0.10 * 100.
func EquityFactor(equityPercent, compRatio float64) float64 {
	return equityPercent*0.15 + compRatio*0.10*100
}

// AIBoost is round(historicalConversionRate * 15).
func AIBoost(historicalConversionRate float64) float64 {
	return roundHalfAwayFromZero(historicalConversionRate * 15)
}

// featureWeights are the predictive model's per-feature weights; they sum to 1.0.
var featureWeights = map[string]float64{
	"ownerAge":             0.12,
	"equityBurnRate":       0.18,
	"absenteeDuration":     0.10,
	"taxDelinquencyTrend":  0.16,
	"lifeEventProbability": 0.20,
	"signalVelocity":       0.10,
	"ownershipStress":      0.08,
	"marketExposure":       0.06,
}

// FeatureWeight returns the configured weight for a predictive feature.
func FeatureWeight(feature string) float64 {
	return featureWeights[feature]
}

// lifeEventBaseRates are the per-event-type base rates feeding the
// life-event-probability feature.
var lifeEventBaseRates = map[types.EventType]float64{
	types.EventProbate:        0.035,
	types.EventDivorce:        0.025,
	types.EventBankruptcy:     0.018,
	types.EventPreForeclosure: 0.022,
	types.EventTaxLien:        0.040,
	types.EventCodeViolation:  0.015,
	types.EventInherited:      0.030,
}

// LifeEventBaseRate returns the configured base rate for an event type.
func LifeEventBaseRate(et types.EventType) float64 {
	return lifeEventBaseRates[et]
}

func roundHalfAwayFromZero(f float64) float64 {
	if f >= 0 {
		return math.Floor(f + 0.5)
	}
	return math.Ceil(f - 0.5)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
