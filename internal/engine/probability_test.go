package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/value-lay/internal/models"
)

func TestMarketProbabilityIsReciprocal(t *testing.T) {
	for _, odds := range []float64{1.01, 1.5, 2.0, 3.5, 10.0, 100.0} {
		assert.InDelta(t, 1/odds, MarketProbability(odds), 1e-12)
	}
}

func TestModelProbabilityCalibrationIdentity(t *testing.T) {
	// alpha = beta = 1 must reduce the model to the raw market-implied
	// probability.
	params := models.ModelParams{Alpha: 1, Beta: 1}
	for _, odds := range []float64{1.01, 1.5, 2.0, 3.5, 10.0, 100.0} {
		assert.InDelta(t, MarketProbability(odds), ModelProbability(odds, params), 1e-12)
	}
}

func TestModelProbabilityPowerLogistic(t *testing.T) {
	params := models.ModelParams{Alpha: 1.2, Beta: 0.9}
	odds := 3.0
	expected := 1 / (1 + 1.2*math.Pow(2.0, 0.9))
	assert.InDelta(t, expected, ModelProbability(odds, params), 1e-12)
}

func TestModelProbabilityDomainGuard(t *testing.T) {
	params := models.DefaultModelParams()
	for _, odds := range []float64{1.0, 0.5, 0, -3} {
		assert.Equal(t, 1.0, ModelProbability(odds, params),
			"odds <= 1 imply a certain event by convention")
		assert.Equal(t, 1.0, MarketProbability(odds))
	}
}

func TestModelProbabilityStaysInRange(t *testing.T) {
	params := models.ModelParams{Alpha: 0.8, Beta: 1.3}
	for odds := 1.02; odds < 200; odds *= 1.7 {
		p := ModelProbability(odds, params)
		assert.Greater(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}
