package scoring

import (
	"time"

	"github.com/heatline/core/internal/types"
)

// ForeclosureStage narrows the days-until-distress and life-event-probability
// features when a property is already in an active foreclosure process.
type ForeclosureStage string

const (
	ForeclosureStageNone    ForeclosureStage = ""
	ForeclosureStageNotice  ForeclosureStage = "notice"
	ForeclosureStageAuction ForeclosureStage = "auction_or_sale"
)

// PredictiveInput is (property history + inferred features) feeding the
// predictive scorer. All fields are optional except Signals;
// nil means "unknown" and participates in the confidence calculation.
type PredictiveInput struct {
	Signals []types.DetectedSignal

	// AsOf anchors every date-derived feature (years since sale,
	// absentee duration). Callers set it once per ingest run so the
	// same input always yields the same output; a zero AsOf falls back
	// to the current time.
	AsOf time.Time

	OwnerAgeKnown    *int
	OwnershipYears   *float64
	IsCorporateOwner bool

	CurrentEquityPercent       *float64
	PreviousEquityPercent      *float64
	MonthsBetweenEquitySamples *float64
	LoanBalance                *float64
	EstimatedValue             *float64
	LastSaleDate               *time.Time
	LastSalePrice              *float64

	IsAbsentee        bool
	AbsenteeSinceDate *time.Time
	IsVacant          bool

	CurrentDelinquentAmount  *float64
	PreviousDelinquentAmount *float64
	TaxAssessedValue         *float64

	ForeclosureStage ForeclosureStage
	DefaultAmount    *float64

	HistoricalScores []int // composite scores, oldest first
}

func (in PredictiveInput) now() time.Time {
	if in.AsOf.IsZero() {
		return time.Now().UTC()
	}
	return in.AsOf
}

// PredictiveOutput is everything a Prediction row needs besides
// id/property_id/created_at.
type PredictiveOutput struct {
	ModelVersion         string
	PredictiveScore      int
	DaysUntilDistress    int
	Confidence           int
	Label                string
	OwnerAgeInference    *int
	EquityBurnRate       *float64
	AbsenteeDurationDays *int
	TaxDelinquencyTrend  *float64
	LifeEventProbability *float64
	Features             map[string]float64
	Factors              []types.Factor
}

// Predictive computes the pred-v2.0 forward-looking distress probability
// and time-to-distress. Pure and total: it never errors, and the same
// input always yields the same output.
func Predictive(in PredictiveInput) PredictiveOutput {
	ownerAge := inferOwnerAge(in)
	ageSub := ownerAgeSubScore(ownerAge)

	burnRate, burnSub := equityBurnRate(in)
	absenteeDays, absenteeSub := absenteeDuration(in)
	taxTrend, taxSub := taxDelinquencyTrend(in)
	lifeEventProb, lifeEventSub := lifeEventProbability(in, ownerAge)
	velocitySub := signalVelocity(in)
	stressSub := ownershipStress(in)
	exposureSub := marketExposure(in)

	total := ageSub*FeatureWeight("ownerAge") +
		burnSub*FeatureWeight("equityBurnRate") +
		absenteeSub*FeatureWeight("absenteeDuration") +
		taxSub*FeatureWeight("taxDelinquencyTrend") +
		lifeEventSub*FeatureWeight("lifeEventProbability") +
		velocitySub*FeatureWeight("signalVelocity") +
		stressSub*FeatureWeight("ownershipStress") +
		exposureSub*FeatureWeight("marketExposure")

	predictiveScore := clampInt(int(roundHalfAwayFromZero(total)), 0, 100)
	days := daysUntilDistress(predictiveScore, in)
	confidence := predictiveConfidence(in, ownerAge)
	label := predictiveLabel(predictiveScore)

	features := map[string]float64{
		"ownerAge":             ageSub,
		"equityBurnRate":       burnSub,
		"absenteeDuration":     absenteeSub,
		"taxDelinquencyTrend":  taxSub,
		"lifeEventProbability": lifeEventSub,
		"signalVelocity":       velocitySub,
		"ownershipStress":      stressSub,
		"marketExposure":       exposureSub,
	}

	factors := []types.Factor{
		{Name: "ownerAge", Value: ageSub, Contribution: roundTo(ageSub*FeatureWeight("ownerAge"), 0.1)},
		{Name: "equityBurnRate", Value: burnSub, Contribution: roundTo(burnSub*FeatureWeight("equityBurnRate"), 0.1)},
		{Name: "absenteeDuration", Value: absenteeSub, Contribution: roundTo(absenteeSub*FeatureWeight("absenteeDuration"), 0.1)},
		{Name: "taxDelinquencyTrend", Value: taxSub, Contribution: roundTo(taxSub*FeatureWeight("taxDelinquencyTrend"), 0.1)},
		{Name: "lifeEventProbability", Value: lifeEventSub, Contribution: roundTo(lifeEventSub*FeatureWeight("lifeEventProbability"), 0.1)},
		{Name: "signalVelocity", Value: velocitySub, Contribution: roundTo(velocitySub*FeatureWeight("signalVelocity"), 0.1)},
		{Name: "ownershipStress", Value: stressSub, Contribution: roundTo(stressSub*FeatureWeight("ownershipStress"), 0.1)},
		{Name: "marketExposure", Value: exposureSub, Contribution: roundTo(exposureSub*FeatureWeight("marketExposure"), 0.1)},
	}

	return PredictiveOutput{
		ModelVersion:         PredictiveModelVersion,
		PredictiveScore:      predictiveScore,
		DaysUntilDistress:    days,
		Confidence:           confidence,
		Label:                label,
		OwnerAgeInference:    ownerAge,
		EquityBurnRate:       burnRate,
		AbsenteeDurationDays: absenteeDays,
		TaxDelinquencyTrend:  taxTrend,
		LifeEventProbability: &lifeEventProb,
		Features:             features,
		Factors:              factors,
	}
}

// inferOwnerAge picks the owner age: an explicit value wins; otherwise
// derive from ownership years for a non-corporate owner; otherwise
// unknown.
func inferOwnerAge(in PredictiveInput) *int {
	if in.OwnerAgeKnown != nil {
		return in.OwnerAgeKnown
	}
	if in.OwnershipYears != nil && !in.IsCorporateOwner {
		age := clampInt(int(roundHalfAwayFromZero(33+*in.OwnershipYears)), 25, 100)
		return &age
	}
	return nil
}

func ownerAgeSubScore(age *int) float64 {
	if age == nil {
		return 40
	}
	a := *age
	switch {
	case a >= 85:
		return 95
	case a >= 75:
		return 82
	case a >= 65:
		return 65
	case a >= 55:
		return 48
	case a >= 45:
		return 35
	case a >= 35:
		return 22
	default:
		return 12
	}
}

// equityBurnRate measures how fast the owner is losing equity. When
// current/previous equity samples aren't both known, approximate the
// annualized burn from an assumed 20% equity-at-purchase baseline versus
// the current implied equity (estimated value minus loan balance),
// amortized over years since the last recorded sale.
func equityBurnRate(in PredictiveInput) (*float64, float64) {
	if in.CurrentEquityPercent != nil && in.PreviousEquityPercent != nil && in.MonthsBetweenEquitySamples != nil && *in.MonthsBetweenEquitySamples > 0 {
		rate := ((*in.PreviousEquityPercent - *in.CurrentEquityPercent) / *in.MonthsBetweenEquitySamples * 12) / 100
		if rate < 0 {
			rate = 0
		}
		return &rate, equityBurnSubScore(rate)
	}

	if in.LoanBalance != nil && in.EstimatedValue != nil && *in.EstimatedValue > 0 && in.LastSaleDate != nil {
		years := in.now().Sub(*in.LastSaleDate).Hours() / 24 / 365.25
		if years < 0.1 {
			years = 0.1
		}
		currentEquityPct := clamp((*in.EstimatedValue-*in.LoanBalance)/(*in.EstimatedValue)*100, 0, 100)
		const assumedPurchaseEquityPct = 20.0
		rate := (assumedPurchaseEquityPct - currentEquityPct) / years / 100
		if rate < 0 {
			rate = 0
		}
		return &rate, equityBurnSubScore(rate)
	}

	return nil, 20
}

func equityBurnSubScore(rate float64) float64 {
	switch {
	case rate >= 0.20:
		return 95
	case rate >= 0.15:
		return 80
	case rate >= 0.10:
		return 65
	case rate >= 0.05:
		return 45
	case rate >= 0.02:
		return 25
	default:
		return 10
	}
}

func absenteeDuration(in PredictiveInput) (*int, float64) {
	if !in.IsAbsentee {
		return nil, 5
	}

	since := in.AbsenteeSinceDate
	if since == nil {
		since = in.LastSaleDate
	}
	if since == nil {
		return nil, 35
	}

	days := int(in.now().Sub(*since).Hours() / 24)
	if days < 0 {
		days = 0
	}
	sub := float64(days) / 365 * 30
	if in.IsVacant {
		sub += 25
	}
	if sub > 100 {
		sub = 100
	}
	return &days, sub
}

// taxDelinquencyTrend measures delinquency growth against the prior
// sample, or normalizes the current amount against assessed/estimated
// value when no prior sample exists.
func taxDelinquencyTrend(in PredictiveInput) (*float64, float64) {
	if in.CurrentDelinquentAmount == nil {
		return nil, 10
	}

	if in.PreviousDelinquentAmount != nil && *in.PreviousDelinquentAmount > 0 {
		trend := (*in.CurrentDelinquentAmount - *in.PreviousDelinquentAmount) / *in.PreviousDelinquentAmount
		return &trend, taxTrendSubScore(trend)
	}

	base := in.TaxAssessedValue
	if base == nil {
		base = in.EstimatedValue
	}
	if base == nil || *base == 0 {
		return nil, 10
	}
	trend := *in.CurrentDelinquentAmount / *base
	return &trend, taxTrendSubScore(trend)
}

func taxTrendSubScore(trend float64) float64 {
	switch {
	case trend >= 0.50:
		return 95
	case trend >= 0.30:
		return 80
	case trend >= 0.15:
		return 60
	case trend >= 0.05:
		return 40
	case trend > 0:
		return 25
	default:
		return 10
	}
}

// lifeEventProbability accumulates per-signal base rates under recency
// and severity multipliers, then applies the stacking, age, foreclosure-
// stage, and default-pressure kickers.
func lifeEventProbability(in PredictiveInput, ownerAge *int) (float64, float64) {
	var prob float64
	for _, s := range in.Signals {
		base := LifeEventBaseRate(s.EventType)
		if base == 0 {
			continue
		}
		recencyMult := 1.0
		switch {
		case s.DaysSinceEvent < 90:
			recencyMult = 2.0
		case s.DaysSinceEvent < 180:
			recencyMult = 1.5
		}
		severityMult := 1.0
		switch {
		case s.Severity >= 8:
			severityMult = 1.8
		case s.Severity >= 5:
			severityMult = 1.3
		}
		prob += base * recencyMult * severityMult
	}

	switch {
	case len(in.Signals) >= 4:
		prob *= 2.0
	case len(in.Signals) >= 3:
		prob *= 1.6
	case len(in.Signals) >= 2:
		prob *= 1.3
	}

	if ownerAge != nil {
		switch {
		case *ownerAge >= 75:
			prob += 0.12
		case *ownerAge >= 65:
			prob += 0.06
		case *ownerAge >= 55:
			prob += 0.03
		}
	}

	switch in.ForeclosureStage {
	case ForeclosureStageAuction:
		prob += 0.25
	case ForeclosureStageNotice:
		prob += 0.15
	default:
		prob += 0.08
	}

	if in.DefaultAmount != nil && in.EstimatedValue != nil && *in.EstimatedValue > 0 {
		pressure := *in.DefaultAmount / *in.EstimatedValue * 2
		if pressure > 0.20 {
			pressure = 0.20
		}
		prob += pressure
	}

	if prob > 1.0 {
		prob = 1.0
	}
	if prob < 0 {
		prob = 0
	}

	sub := roundHalfAwayFromZero(prob * 200)
	if sub > 100 {
		sub = 100
	}
	return prob, sub
}

// signalVelocity combines the recent-signal ratio with the score trend,
// taken as the normalized change between the oldest and most recent
// historical composite score.
func signalVelocity(in PredictiveInput) float64 {
	total := len(in.Signals)
	var recentCount int
	for _, s := range in.Signals {
		if s.DaysSinceEvent <= 90 {
			recentCount++
		}
	}
	var ratio float64
	if total > 0 {
		ratio = float64(recentCount) / float64(total)
	}

	var scoreTrend float64
	if n := len(in.HistoricalScores); n >= 2 {
		scoreTrend = clamp(float64(in.HistoricalScores[n-1]-in.HistoricalScores[0])/10, -3, 3)
	}

	velocity := ratio*3 + float64(recentCount)*0.8 + scoreTrend*2
	sub := roundHalfAwayFromZero(velocity * 20)
	if sub > 100 {
		sub = 100
	}
	if sub < 0 {
		sub = 0
	}
	return sub
}

func ownershipStress(in PredictiveInput) float64 {
	var stress float64

	if in.OwnershipYears != nil {
		switch {
		case *in.OwnershipYears > 20:
			stress += 20
		case *in.OwnershipYears > 10:
			stress += 10
		}
	}

	if in.CurrentEquityPercent != nil {
		switch {
		case *in.CurrentEquityPercent < 10:
			stress += 35
		case *in.CurrentEquityPercent < 20:
			stress += 20
		case *in.CurrentEquityPercent < 30:
			stress += 10
		}
	}

	if in.IsVacant && in.IsAbsentee {
		stress += 25
	} else if in.IsVacant {
		stress += 15
	}

	freeAndClear := in.LoanBalance != nil && *in.LoanBalance == 0
	delinquent := in.CurrentDelinquentAmount != nil && *in.CurrentDelinquentAmount > 0
	if freeAndClear && delinquent {
		stress += 30
	}

	return clamp(stress, 0, 100)
}

func marketExposure(in PredictiveInput) float64 {
	var exposure float64

	if in.EstimatedValue != nil {
		switch {
		case *in.EstimatedValue < 150000:
			exposure += 25
		case *in.EstimatedValue < 250000:
			exposure += 15
		case *in.EstimatedValue < 400000:
			exposure += 8
		}
	}

	if in.LastSaleDate != nil {
		years := in.now().Sub(*in.LastSaleDate).Hours() / 24 / 365.25
		switch {
		case years > 15:
			exposure += 25
		case years > 10:
			exposure += 15
		case years > 5:
			exposure += 8
		}
	}

	switch {
	case len(in.Signals) >= 3:
		exposure += 20
	case len(in.Signals) >= 2:
		exposure += 10
	}

	return clamp(exposure, 0, 100)
}

// daysUntilDistress maps the score to a base horizon, tightened by an
// active foreclosure stage and by very-recent signals, floored at 7 days.
func daysUntilDistress(score int, in PredictiveInput) int {
	var days float64
	switch {
	case score >= 90:
		days = 14
	case score >= 80:
		days = 30
	case score >= 70:
		days = 60
	case score >= 60:
		days = 90
	case score >= 50:
		days = 120
	case score >= 40:
		days = 180
	case score >= 25:
		days = 270
	default:
		days = 365
	}

	switch in.ForeclosureStage {
	case ForeclosureStageAuction:
		days = minFloat(days, 14)
	case ForeclosureStageNotice:
		days = minFloat(days, 45)
	}

	var last30 int
	for _, s := range in.Signals {
		if s.DaysSinceEvent <= 30 {
			last30++
		}
	}
	switch {
	case last30 >= 2:
		days *= 0.6
	case last30 >= 1:
		days *= 0.8
	}

	result := int(roundHalfAwayFromZero(days))
	if result < 7 {
		result = 7
	}
	return result
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// predictiveConfidence weighs how many of the model's data points were
// actually present in the input.
func predictiveConfidence(in PredictiveInput, ownerAge *int) int {
	type point struct {
		present bool
		weight  int
	}
	points := []point{
		{ownerAge != nil, 12},
		{in.CurrentEquityPercent != nil, 10},
		{in.PreviousEquityPercent != nil, 8},
		{in.EstimatedValue != nil, 10},
		{in.LoanBalance != nil, 8},
		{in.LastSaleDate != nil, 6},
		{in.LastSalePrice != nil, 6},
		{in.IsAbsentee, 4},
		{in.CurrentDelinquentAmount != nil, 8},
		{len(in.Signals) > 0, 10},
		{len(in.Signals) >= 2, 6},
		{len(in.HistoricalScores) >= 2, 8},
		{in.ForeclosureStage != ForeclosureStageNone, 4},
	}

	var got, max int
	for _, p := range points {
		max += p.weight
		if p.present {
			got += p.weight
		}
	}

	pct := int(roundHalfAwayFromZero(float64(got) / float64(max) * 100))
	return clampInt(pct, 15, 98)
}

func predictiveLabel(score int) string {
	switch {
	case score >= 80:
		return "imminent"
	case score >= 55:
		return "likely"
	case score >= 30:
		return "possible"
	default:
		return "unlikely"
	}
}
