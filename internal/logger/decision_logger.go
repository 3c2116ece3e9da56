// Package logger provides audit logging for anchor and verdict events.
package logger

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/value-lay/internal/models"
)

// DecisionLogger provides a dedicated audit trail for the evaluation cycle.
// Verdicts are ephemeral by design; this log is the durable record of what
// the engine concluded and why.
type DecisionLogger struct {
	*logrus.Entry
}

// NewDecisionLogger creates a new decision logger.
func NewDecisionLogger(baseLogger *logrus.Logger) *DecisionLogger {
	return &DecisionLogger{
		Entry: baseLogger.WithField("component", "decision"),
	}
}

// LogAnchorCreated logs the establishment of an opening anchor.
func (dl *DecisionLogger) LogAnchorCreated(raceID, runner string, price float64, sources int) {
	dl.WithFields(logrus.Fields{
		"race_id": raceID,
		"runner":  runner,
		"price":   price,
		"sources": sources,
	}).Info("Opening anchor established")
}

// LogAnchorRaceLost logs an opening insert that lost the uniqueness race to
// a concurrent cycle.
func (dl *DecisionLogger) LogAnchorRaceLost(raceID, runner string) {
	dl.WithFields(logrus.Fields{
		"race_id": raceID,
		"runner":  runner,
	}).Warn("Opening insert lost race to concurrent cycle, keeping persisted anchor")
}

// LogVerdict logs a per-runner verdict.
func (dl *DecisionLogger) LogVerdict(raceID, runner string, signal models.Signal, compressionPct *float64, decision *models.Decision) {
	fields := logrus.Fields{
		"race_id":         raceID,
		"runner":          runner,
		"signal":          signal,
		"price_shortened": decision.PriceShortened,
		"has_lay_value":   decision.HasLayValue,
		"place_lay":       decision.PlaceLay,
		"reasons":         decision.Reasons,
	}
	if compressionPct != nil {
		fields["compression_pct"] = *compressionPct
	}
	if decision.Edge != nil {
		fields["edge"] = *decision.Edge
	}
	if decision.Sizing != nil {
		fields["kelly_fraction"] = decision.Sizing.KellyFraction
		fields["stake"] = decision.Sizing.Stake
		fields["liability"] = decision.Sizing.Liability
		fields["ev"] = decision.Sizing.EV
	}
	dl.WithFields(fields).Info("Runner verdict recorded")
}
