package engine

import (
	"github.com/yourusername/value-lay/internal/models"
)

// EvaluationInput collects everything the orchestrator needs for one runner.
// AnchorPrice and ExecutionPrice are nil when not yet available; the
// consensus price feeds the calibrated model while the execution price
// feeds the market probability and sizing.
type EvaluationInput struct {
	AnchorPrice    *float64
	ExecutionPrice *float64
	ConsensusPrice float64
	Model          models.ModelParams
	Sizing         models.SizingParams
}

// Evaluate composes the probability model, the shortened-price check and the
// lay sizing engine into one per-runner verdict. It is a pure function of
// its inputs and never fails: fields that cannot be computed stay nil so the
// presentation layer can render a uniform no-signal state.
func Evaluate(in EvaluationInput) models.Decision {
	d := models.Decision{Reasons: []string{}}

	if in.ExecutionPrice == nil {
		d.Reasons = append(d.Reasons, models.ReasonNoCurrentOdds)
		return d
	}
	current := *in.ExecutionPrice

	pModel := ModelProbability(in.ConsensusPrice, in.Model)
	pMarket := MarketProbability(current)
	edge := pMarket - pModel
	d.ModelProb = &pModel
	d.MarketProb = &pMarket
	d.Edge = &edge

	d.PriceShortened = in.AnchorPrice != nil && current < *in.AnchorPrice
	// The market pricing the runner as more likely to win than the model
	// believes means the lay side is underpriced.
	d.HasLayValue = pModel < pMarket

	if d.PriceShortened {
		d.Reasons = append(d.Reasons, models.ReasonPriceShortened)
	} else {
		d.Reasons = append(d.Reasons, models.ReasonPriceNotShortened)
	}
	if d.HasLayValue {
		d.Reasons = append(d.Reasons, models.ReasonLayValue)
	} else {
		d.Reasons = append(d.Reasons, models.ReasonNoLayValue)
	}

	if !d.PriceShortened || !d.HasLayValue {
		return d
	}

	sizing := SizeLay(in.Sizing, current, pModel)
	d.Sizing = &sizing

	// Gate on the unrounded fraction: the record's KellyFraction is rounded
	// to 4dp and reads zero for a tiny positive edge.
	if layKelly(in.Sizing, current, pModel) <= 0 {
		// Attached for observability even though the commission-adjusted
		// edge evaporated.
		d.Reasons = append(d.Reasons, models.ReasonNonPositiveEdge)
		return d
	}

	d.PlaceLay = true
	if sizing.BelowMinStake {
		// Informational only: a venue minimum is a presentation concern,
		// not a correctness failure.
		d.Reasons = append(d.Reasons, models.ReasonBelowMinStake)
	}
	return d
}
