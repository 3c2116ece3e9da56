// Package engine implements the value detection and lay-sizing core. All
// functions in this package are pure and total over their declared inputs:
// invalid domains yield well-defined degenerate results, missing data
// propagates as nil, and nothing here performs I/O.
package engine

import (
	"github.com/yourusername/value-lay/internal/models"
)

// AnchorResolution is the per-runner outcome of resolving a batch of
// observations against existing opening records.
type AnchorResolution struct {
	IsNewAnchor bool
	AnchorPrice float64
	Sources     int
}

// BatchResolution carries both the per-runner anchor decisions and the
// per-observation opening flags for the rows destined for persistence.
// OpeningFlags is aligned index-for-index with the input batch; at most one
// flag per runner is true, preserving the at-most-once anchor invariant
// even when one batch carries duplicate observations for a runner.
type BatchResolution struct {
	Runners      map[string]AnchorResolution
	OpeningFlags []bool
}

// ResolveAnchors decides which observations in the batch become opening
// records. Runners present in the opened map keep their persisted anchor
// price as authoritative regardless of current prices. An unopened runner is
// anchored to the mean of its usable (> 1) prices in this batch; a runner
// with no usable prices stays unanchored until a later batch supplies one.
//
// The resolution is advisory: two concurrent cycles may both propose the
// same first anchor, and the persistence layer's uniqueness constraint on
// opening rows is the backstop that makes the write exactly-once.
func ResolveAnchors(batch []models.Observation, opened map[string]float64) BatchResolution {
	res := BatchResolution{
		Runners:      make(map[string]AnchorResolution),
		OpeningFlags: make([]bool, len(batch)),
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i := range batch {
		obs := &batch[i]
		if !obs.IsUsable() {
			continue
		}
		sums[obs.Runner] += obs.Odds
		counts[obs.Runner]++
	}

	for runner, count := range counts {
		if price, ok := opened[runner]; ok {
			res.Runners[runner] = AnchorResolution{
				IsNewAnchor: false,
				AnchorPrice: price,
				Sources:     count,
			}
			continue
		}
		res.Runners[runner] = AnchorResolution{
			IsNewAnchor: true,
			AnchorPrice: sums[runner] / float64(count),
			Sources:     count,
		}
	}

	// Runners already opened but absent from this batch still resolve to
	// their persisted anchor so downstream lookups stay uniform.
	for runner, price := range opened {
		if _, ok := res.Runners[runner]; !ok {
			res.Runners[runner] = AnchorResolution{AnchorPrice: price}
		}
	}

	flagged := make(map[string]bool, len(res.Runners))
	for i := range batch {
		obs := &batch[i]
		r, ok := res.Runners[obs.Runner]
		if !ok || !r.IsNewAnchor || !obs.IsUsable() {
			continue
		}
		if flagged[obs.Runner] {
			continue
		}
		res.OpeningFlags[i] = true
		flagged[obs.Runner] = true
	}

	return res
}

// BuildSnapshots collapses a batch into per-runner price snapshots: the
// consensus mean over usable prices plus the execution venue's own price
// when that source reported one.
func BuildSnapshots(batch []models.Observation, executionSource string) map[string]*models.PriceSnapshot {
	snapshots := make(map[string]*models.PriceSnapshot)

	sums := make(map[string]float64)
	for i := range batch {
		obs := &batch[i]
		if !obs.IsUsable() {
			continue
		}
		snap, ok := snapshots[obs.Runner]
		if !ok {
			snap = &models.PriceSnapshot{Runner: obs.Runner}
			snapshots[obs.Runner] = snap
		}
		sums[obs.Runner] += obs.Odds
		snap.Sources++
		if executionSource != "" && obs.Source == executionSource {
			price := obs.Odds
			snap.Execution = &price
		}
	}

	for runner, snap := range snapshots {
		snap.Consensus = sums[runner] / float64(snap.Sources)
	}

	return snapshots
}
