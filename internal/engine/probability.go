package engine

import (
	"math"

	"github.com/yourusername/value-lay/internal/models"
)

// ModelProbability converts a decimal price into a calibrated win
// probability via the two-parameter power-logistic model:
//
//	p = 1 / (1 + alpha * (odds-1)^beta)
//
// With alpha = beta = 1 this is exactly the market-implied probability.
// Odds <= 1 cannot imply a probability below certainty and yield p = 1 by
// convention; observation filtering upstream keeps such placeholders out of
// the normal path, the guard is there so a stray zero price cannot crash
// the pipeline.
func ModelProbability(odds float64, params models.ModelParams) float64 {
	if odds <= 1 {
		return 1
	}
	x := odds - 1
	return 1 / (1 + params.Alpha*math.Pow(x, params.Beta))
}

// MarketProbability returns the market-implied win probability 1/odds.
// Kept separate from ModelProbability so it stays computable when
// calibration parameters are absent or misconfigured.
func MarketProbability(odds float64) float64 {
	if odds <= 1 {
		return 1
	}
	return 1 / odds
}
