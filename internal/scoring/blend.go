package scoring

// BlendInput pairs the two tiers' outputs for the C5 blend step: a single lead_score used for ranking and promotion decisions.
type BlendInput struct {
	Retrospective RetrospectiveOutput
	Predictive    *PredictiveOutput // nil when no prediction exists yet
}

// BlendOutput is the blended lead score plus the label driving promotion.
type BlendOutput struct {
	LeadScore int
	Label     string
}

// retrospectiveBlendWeight and predictiveBlendWeight sum to 1.0. When no
// prediction is available the retrospective score is used outright.
const (
	retrospectiveBlendWeight = 0.70
	predictiveBlendWeight    = 0.30
)

// Blend combines the retrospective composite score with the predictive
// score into the lead_score recorded on the Lead. Pure and
// total, consistent with the rest of the scoring package.
func Blend(in BlendInput) BlendOutput {
	if in.Predictive == nil {
		return BlendOutput{
			LeadScore: in.Retrospective.CompositeScore,
			Label:     in.Retrospective.Label,
		}
	}

	blended := float64(in.Retrospective.CompositeScore)*retrospectiveBlendWeight +
		float64(in.Predictive.PredictiveScore)*predictiveBlendWeight
	score := clampInt(int(roundHalfAwayFromZero(blended)), 0, 100)

	return BlendOutput{
		LeadScore: score,
		Label:     retrospectiveLabel(score),
	}
}
