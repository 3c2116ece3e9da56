package models

// Signal is the ordered categorical alert produced by the compression
// classifier.
type Signal string

const (
	SignalNone         Signal = "none"
	SignalConservative Signal = "conservative"
	SignalStrong       Signal = "strong"
	SignalPremium      Signal = "premium"
)

// Thresholds holds the compression tiers as percentages. The caller is
// responsible for supplying a monotonic triple (conservative <= strong <=
// premium); a non-monotonic configuration is not corrected and classifies
// literally, with premium checked first.
type Thresholds struct {
	Conservative float64 `mapstructure:"conservative" json:"conservative" validate:"gte=0"`
	Strong       float64 `mapstructure:"strong" json:"strong" validate:"gte=0"`
	Premium      float64 `mapstructure:"premium" json:"premium" validate:"gte=0"`
}

// ModelParams are the two parameters of the power-logistic win-probability
// model. The default (1, 1) reduces the model to the raw market-implied
// probability.
type ModelParams struct {
	Alpha float64 `mapstructure:"alpha" json:"alpha" validate:"gt=0"`
	Beta  float64 `mapstructure:"beta" json:"beta" validate:"gt=0"`
}

// DefaultModelParams returns the uncalibrated identity parameters.
func DefaultModelParams() ModelParams {
	return ModelParams{Alpha: 1, Beta: 1}
}

// SizingParams configure the lay sizing engine.
type SizingParams struct {
	Bankroll        float64 `mapstructure:"bankroll" json:"bankroll" validate:"gte=0"`
	Commission      float64 `mapstructure:"commission" json:"commission" validate:"gte=0,lt=1"`
	KellyMultiplier float64 `mapstructure:"kelly_multiplier" json:"kelly_multiplier" validate:"gte=0"`
	MaxLiabilityPct float64 `mapstructure:"max_liability_pct" json:"max_liability_pct" validate:"gte=0"`
	MinStake        float64 `mapstructure:"min_stake" json:"min_stake" validate:"gte=0"`
}

// SizingResult is the output of the lay sizing engine. Currency fields are
// rounded to 2 decimal places, fractions and probabilities to 4; the engine
// chains unrounded values internally.
type SizingResult struct {
	KellyFraction        float64 `json:"kelly_fraction"`
	Stake                float64 `json:"stake"`
	Liability            float64 `json:"liability"`
	ProfitIfLose         float64 `json:"profit_if_lose"`
	LossIfWin            float64 `json:"loss_if_win"`
	EV                   float64 `json:"ev"`
	EVPctBankroll        float64 `json:"ev_pct_bankroll"`
	EVPerLiability       float64 `json:"ev_per_liability"`
	CappedByMaxLiability bool    `json:"capped_by_max_liability"`
	BelowMinStake        bool    `json:"below_min_stake"`
}

// Decision reason codes, kept stable for the presentation layer.
const (
	ReasonNoCurrentOdds     = "no current odds available"
	ReasonPriceShortened    = "price shortened from opening"
	ReasonPriceNotShortened = "price has not shortened from opening"
	ReasonLayValue          = "model probability below market price"
	ReasonNoLayValue        = "model finds no lay value at current price"
	ReasonNonPositiveEdge   = "non-positive edge after commission"
	ReasonBelowMinStake     = "stake below venue minimum"
)

// Decision is the per-runner verdict, recomputed every evaluation cycle and
// never persisted as a source of truth. Probability fields are nil when they
// could not be computed, never defaulted to zero.
type Decision struct {
	ModelProb      *float64      `json:"model_prob,omitempty"`
	MarketProb     *float64      `json:"market_prob,omitempty"`
	Edge           *float64      `json:"edge,omitempty"`
	PriceShortened bool          `json:"price_shortened"`
	HasLayValue    bool          `json:"has_lay_value"`
	PlaceLay       bool          `json:"place_lay"`
	Reasons        []string      `json:"reasons"`
	Sizing         *SizingResult `json:"sizing,omitempty"`
}
