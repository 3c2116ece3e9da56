package engine

import (
	"github.com/yourusername/value-lay/internal/models"
)

// Classify computes percentage price compression between an opening anchor
// and the current price and maps it to a categorical signal.
//
// Compression is (anchor - current) / anchor * 100: positive when the price
// has shortened toward the lay signal, negative or zero when it lengthened
// or held, which always classifies as SignalNone regardless of magnitude.
// A nil compression means the pair cannot be classified (no anchor yet, or
// no current price) and must not be read as zero.
//
// Tiers are evaluated premium first, then strong, then conservative, each as
// a >= test. With a monotonic threshold triple the tiers nest, so checking
// premium first is required for a correct first-match; a non-monotonic
// configuration classifies literally by the same order.
func Classify(anchorPrice, currentPrice *float64, t models.Thresholds) (*float64, models.Signal) {
	if anchorPrice == nil || currentPrice == nil || *anchorPrice <= 0 {
		return nil, models.SignalNone
	}

	pct := (*anchorPrice - *currentPrice) / *anchorPrice * 100

	if pct <= 0 {
		return &pct, models.SignalNone
	}

	switch {
	case pct >= t.Premium:
		return &pct, models.SignalPremium
	case pct >= t.Strong:
		return &pct, models.SignalStrong
	case pct >= t.Conservative:
		return &pct, models.SignalConservative
	default:
		return &pct, models.SignalNone
	}
}
