package engine

import (
	"github.com/shopspring/decimal"

	"github.com/yourusername/value-lay/internal/models"
)

// SizeLay computes the Kelly-optimal lay stake for a runner the model
// believes is overbet by the market.
//
// A lay bet risks liability = stake * (odds-1) if the runner wins and
// collects stake * (1-commission) if it loses. Writing f for the fraction
// of bankroll risked as liability and r = (1-c)/(odds-1) for the return per
// unit liability, expected log growth is q*ln(1+f*r) + p*ln(1-f), whose
// closed-form maximizer is
//
//	f* = (1-p) - p*(odds-1)/(1-c)
//
// Note this is not the classic backable Kelly (bp-q)/b, which has the wrong
// sign and scale for the lay payoff structure.
//
// All intermediate values are chained unrounded; only the returned record
// is rounded (currency to 2 decimal places, fractions to 4).
func SizeLay(params models.SizingParams, layOdds, pWin float64) models.SizingResult {
	oddsMinusOne := layOdds - 1
	if oddsMinusOne <= 0 {
		return models.SizingResult{}
	}

	fullKelly := layKelly(params, layOdds, pWin)
	if fullKelly <= 0 {
		// No positive edge. KellyFraction is clamped to zero in the
		// returned record so observability never reports a negative
		// fraction.
		return models.SizingResult{}
	}

	f := fullKelly * params.KellyMultiplier
	if f > 1 {
		f = 1 // hard cap, no leverage
	}

	liability := f * params.Bankroll
	stake := liability / oddsMinusOne

	capped := false
	ceiling := params.Bankroll * params.MaxLiabilityPct / 100
	if liability > ceiling {
		liability = ceiling
		stake = liability / oddsMinusOne
		capped = true
	}

	belowMin := stake < params.MinStake && stake > 0

	profitIfLose := stake * (1 - params.Commission)
	lossIfWin := liability
	ev := (1-pWin)*profitIfLose - pWin*lossIfWin

	evPctBankroll := 0.0
	if params.Bankroll > 0 {
		evPctBankroll = ev / params.Bankroll * 100
	}
	evPerLiability := 0.0
	if liability > 0 {
		evPerLiability = ev / liability
	}

	return models.SizingResult{
		KellyFraction:        roundFraction(fullKelly),
		Stake:                roundCurrency(stake),
		Liability:            roundCurrency(liability),
		ProfitIfLose:         roundCurrency(profitIfLose),
		LossIfWin:            roundCurrency(lossIfWin),
		EV:                   roundCurrency(ev),
		EVPctBankroll:        roundFraction(evPctBankroll),
		EVPerLiability:       roundFraction(evPerLiability),
		CappedByMaxLiability: capped,
		BelowMinStake:        belowMin,
	}
}

// layKelly returns the unrounded full-Kelly liability fraction for a lay at
// the given odds, non-positive when the commission-adjusted edge is gone.
// Callers that branch on the sign of the edge must use this value, not the
// 4dp fraction in the returned record.
func layKelly(params models.SizingParams, layOdds, pWin float64) float64 {
	oddsMinusOne := layOdds - 1
	if oddsMinusOne <= 0 {
		return 0
	}
	return (1 - pWin) - pWin*oddsMinusOne/(1-params.Commission)
}

// roundCurrency rounds a currency amount to 2 decimal places for display.
func roundCurrency(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// roundFraction rounds a fraction or probability to 4 decimal places.
func roundFraction(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}
