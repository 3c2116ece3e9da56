package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/value-lay/internal/models"
)

func obs(raceID uuid.UUID, runner, source string, odds float64) models.Observation {
	return models.Observation{
		RaceID:   raceID,
		Runner:   runner,
		Source:   source,
		Odds:     odds,
		Observed: time.Now(),
	}
}

func TestResolveAnchorsFirstBatchUsesConsensusMean(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Lucky Star", "oddsfeed", 4.0),
		obs(raceID, "Lucky Star", "exchange", 5.0),
		obs(raceID, "Lucky Star", "bookie_b", 4.5),
	}

	res := ResolveAnchors(batch, nil)

	r, ok := res.Runners["Lucky Star"]
	require.True(t, ok)
	assert.True(t, r.IsNewAnchor)
	assert.InDelta(t, 4.5, r.AnchorPrice, 1e-9)
	assert.Equal(t, 3, r.Sources)
}

func TestResolveAnchorsExcludesInvalidPrices(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Dusty Mile", "oddsfeed", 0),
		obs(raceID, "Dusty Mile", "exchange", 6.0),
		obs(raceID, "Dusty Mile", "bookie_b", -2),
		obs(raceID, "Dusty Mile", "bookie_c", 1.0),
		obs(raceID, "Dusty Mile", "bookie_d", 8.0),
	}

	res := ResolveAnchors(batch, nil)

	r, ok := res.Runners["Dusty Mile"]
	require.True(t, ok)
	assert.True(t, r.IsNewAnchor)
	assert.InDelta(t, 7.0, r.AnchorPrice, 1e-9)
	assert.Equal(t, 2, r.Sources)
}

func TestResolveAnchorsAllInvalidYieldsNoAnchor(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Ghost Entry", "oddsfeed", 0),
		obs(raceID, "Ghost Entry", "exchange", 1.0),
	}

	res := ResolveAnchors(batch, nil)

	_, ok := res.Runners["Ghost Entry"]
	assert.False(t, ok, "runner with no usable prices should stay unanchored")
	for _, flag := range res.OpeningFlags {
		assert.False(t, flag)
	}
}

func TestResolveAnchorsExistingAnchorIsAuthoritative(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Lucky Star", "oddsfeed", 2.0),
		obs(raceID, "Lucky Star", "exchange", 2.2),
	}
	opened := map[string]float64{"Lucky Star": 4.5}

	res := ResolveAnchors(batch, opened)

	r := res.Runners["Lucky Star"]
	assert.False(t, r.IsNewAnchor)
	assert.InDelta(t, 4.5, r.AnchorPrice, 1e-9, "persisted anchor wins over current prices")
	for _, flag := range res.OpeningFlags {
		assert.False(t, flag)
	}
}

func TestResolveAnchorsAtMostOnceAcrossBatches(t *testing.T) {
	raceID := uuid.New()
	first := []models.Observation{obs(raceID, "Lucky Star", "oddsfeed", 4.0)}
	second := []models.Observation{obs(raceID, "Lucky Star", "oddsfeed", 3.0)}

	resA := ResolveAnchors(first, nil)
	require.True(t, resA.Runners["Lucky Star"].IsNewAnchor)

	// Replaying the next batch after the first anchor is recorded must
	// never propose a second one.
	opened := map[string]float64{"Lucky Star": resA.Runners["Lucky Star"].AnchorPrice}
	resB := ResolveAnchors(second, opened)
	assert.False(t, resB.Runners["Lucky Star"].IsNewAnchor)
	assert.InDelta(t, 4.0, resB.Runners["Lucky Star"].AnchorPrice, 1e-9)
}

func TestResolveAnchorsFlagsOnlyFirstDuplicateInBatch(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Lucky Star", "oddsfeed", 4.0),
		obs(raceID, "Night Train", "oddsfeed", 9.0),
		obs(raceID, "Lucky Star", "exchange", 5.0),
		obs(raceID, "Lucky Star", "bookie_b", 4.5),
	}

	res := ResolveAnchors(batch, nil)

	assert.Equal(t, []bool{true, true, false, false}, res.OpeningFlags)
}

func TestResolveAnchorsSkipsInvalidRowWhenFlagging(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Lucky Star", "oddsfeed", 0),
		obs(raceID, "Lucky Star", "exchange", 5.0),
	}

	res := ResolveAnchors(batch, nil)

	assert.Equal(t, []bool{false, true}, res.OpeningFlags,
		"the first usable observation carries the opening flag")
}

func TestResolveAnchorsCarriesOpenedRunnersAbsentFromBatch(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{obs(raceID, "Night Train", "oddsfeed", 9.0)}
	opened := map[string]float64{"Lucky Star": 4.5}

	res := ResolveAnchors(batch, opened)

	r, ok := res.Runners["Lucky Star"]
	require.True(t, ok)
	assert.False(t, r.IsNewAnchor)
	assert.InDelta(t, 4.5, r.AnchorPrice, 1e-9)
}

func TestBuildSnapshots(t *testing.T) {
	raceID := uuid.New()
	batch := []models.Observation{
		obs(raceID, "Lucky Star", "oddsfeed", 4.0),
		obs(raceID, "Lucky Star", "exchange", 5.0),
		obs(raceID, "Night Train", "oddsfeed", 0),
		obs(raceID, "Night Train", "bookie_b", 12.0),
	}

	snaps := BuildSnapshots(batch, "exchange")

	lucky := snaps["Lucky Star"]
	require.NotNil(t, lucky)
	assert.InDelta(t, 4.5, lucky.Consensus, 1e-9)
	require.NotNil(t, lucky.Execution)
	assert.InDelta(t, 5.0, *lucky.Execution, 1e-9)
	assert.Equal(t, 2, lucky.Sources)

	night := snaps["Night Train"]
	require.NotNil(t, night)
	assert.InDelta(t, 12.0, night.Consensus, 1e-9)
	assert.Nil(t, night.Execution, "execution venue did not report this runner")
	assert.Equal(t, 1, night.Sources)
}

func TestPriceSnapshotReferencePrice(t *testing.T) {
	exec := 3.2
	snap := &models.PriceSnapshot{Runner: "Lucky Star", Consensus: 3.5, Execution: &exec, Sources: 3}
	ref := snap.ReferencePrice()
	require.NotNil(t, ref)
	assert.InDelta(t, 3.2, *ref, 1e-9, "execution price preferred over consensus")

	snap.Execution = nil
	ref = snap.ReferencePrice()
	require.NotNil(t, ref)
	assert.InDelta(t, 3.5, *ref, 1e-9)

	empty := &models.PriceSnapshot{Runner: "Ghost Entry"}
	assert.Nil(t, empty.ReferencePrice())
}
