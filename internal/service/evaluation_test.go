package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/value-lay/internal/config"
	"github.com/yourusername/value-lay/internal/datasource"
	"github.com/yourusername/value-lay/internal/models"
	"github.com/yourusername/value-lay/internal/repository"
)

// MockOddsProvider mocks an odds provider
type MockOddsProvider struct {
	mock.Mock
	name string
}

func (m *MockOddsProvider) FetchOdds(ctx context.Context, from, to time.Time) (*datasource.FetchResult, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*datasource.FetchResult), args.Error(1)
}

func (m *MockOddsProvider) Name() string {
	return m.name
}

func (m *MockOddsProvider) IsEnabled() bool {
	return true
}

// MockRaceRepository mocks the race repository
type MockRaceRepository struct {
	mock.Mock
}

func (m *MockRaceRepository) Upsert(ctx context.Context, race *models.Race) error {
	args := m.Called(ctx, race)
	return args.Error(0)
}

func (m *MockRaceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Race, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Race), args.Error(1)
}

func (m *MockRaceRepository) ListUpcoming(ctx context.Context, minFieldSize, maxFieldSize int) ([]*models.Race, error) {
	args := m.Called(ctx, minFieldSize, maxFieldSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Race), args.Error(1)
}

// MockSnapshotRepository mocks the snapshot repository
type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) InsertBatch(ctx context.Context, rows []repository.SnapshotRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockSnapshotRepository) InsertOpening(ctx context.Context, row repository.SnapshotRow) (bool, error) {
	args := m.Called(ctx, row)
	return args.Bool(0), args.Error(1)
}

func (m *MockSnapshotRepository) OpenedRunners(ctx context.Context, raceID uuid.UUID) (map[string]float64, error) {
	args := m.Called(ctx, raceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockSnapshotRepository) LatestByRunner(ctx context.Context, raceID uuid.UUID, runner string) (*models.Observation, error) {
	args := m.Called(ctx, raceID, runner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Observation), args.Error(1)
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		Thresholds: models.Thresholds{Conservative: 15, Strong: 25, Premium: 40},
		Model:      models.DefaultModelParams(),
		Sizing: models.SizingParams{
			Bankroll:        1000,
			Commission:      0.05,
			KellyMultiplier: 1,
			MaxLiabilityPct: 100,
		},
		ExecutionSource:     "exchange",
		PollIntervalSeconds: 60,
	}
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func fetchResult(start time.Time, prices []datasource.RunnerPrice) *datasource.FetchResult {
	return &datasource.FetchResult{
		Races: []datasource.RaceOdds{
			{
				SourceRaceID: "r1",
				Track:        "Ascot",
				StartTime:    start,
				Prices:       prices,
			},
		},
		Quota: datasource.Quota{Used: 1, Remaining: 499, Known: true},
	}
}

func TestRunCycleEstablishesAnchorsAndSizesLays(t *testing.T) {
	start := time.Now().Add(2 * time.Hour)

	provider := &MockOddsProvider{name: "oddsfeed"}
	provider.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		fetchResult(start, []datasource.RunnerPrice{
			{Runner: "Alpha", Source: "bk1", Odds: decimal.NewFromFloat(10.0)},
			{Runner: "Alpha", Source: "bk2", Odds: decimal.NewFromFloat(8.0)},
			{Runner: "Alpha", Source: "exchange", Odds: decimal.NewFromFloat(6.0)},
			{Runner: "Beta", Source: "bk1", Odds: decimal.NewFromFloat(4.0)},
			{Runner: "Beta", Source: "exchange", Odds: decimal.NewFromFloat(5.0)},
		}), nil)

	races := &MockRaceRepository{}
	races.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	snapshots := &MockSnapshotRepository{}
	snapshots.On("OpenedRunners", mock.Anything, mock.Anything).Return(map[string]float64{}, nil)
	snapshots.On("InsertOpening", mock.Anything, mock.MatchedBy(func(row repository.SnapshotRow) bool {
		return row.IsOpening
	})).Return(true, nil)
	snapshots.On("InsertBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewEvaluationService([]datasource.OddsProvider{provider}, races, snapshots, testEngineConfig(), testLogger())

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 2)
	assert.Equal(t, 1, report.RacesSeen)
	assert.Equal(t, 0, report.ProviderError)
	assert.Equal(t, 499, report.Quotas["oddsfeed"].Remaining)

	byRunner := make(map[string]RunnerVerdict)
	for _, v := range report.Verdicts {
		byRunner[v.Runner] = v
	}

	// Alpha anchors at the consensus mean (10+8+6)/3 = 8 and trades at the
	// venue price 6: compression 25% hits the strong tier and the model
	// finds lay value.
	alpha := byRunner["Alpha"]
	require.NotNil(t, alpha.AnchorPrice)
	assert.InDelta(t, 8.0, *alpha.AnchorPrice, 1e-9)
	require.NotNil(t, alpha.CurrentPrice)
	assert.InDelta(t, 6.0, *alpha.CurrentPrice, 1e-9)
	require.NotNil(t, alpha.CompressionPct)
	assert.InDelta(t, 25.0, *alpha.CompressionPct, 1e-9)
	assert.Equal(t, models.SignalStrong, alpha.Signal)
	assert.True(t, alpha.Decision.PlaceLay)
	require.NotNil(t, alpha.Decision.Sizing)
	assert.Greater(t, alpha.Decision.Sizing.Stake, 0.0)

	// Beta drifted from 4.5 to 5: no signal, no lay.
	beta := byRunner["Beta"]
	require.NotNil(t, beta.AnchorPrice)
	assert.InDelta(t, 4.5, *beta.AnchorPrice, 1e-9)
	assert.Equal(t, models.SignalNone, beta.Signal)
	assert.False(t, beta.Decision.PlaceLay)

	// One opening row per runner, the rest as regular snapshots.
	snapshots.AssertNumberOfCalls(t, "InsertOpening", 2)
	snapshots.AssertCalled(t, "InsertBatch", mock.Anything, mock.MatchedBy(func(rows []repository.SnapshotRow) bool {
		return len(rows) == 3
	}))
}

func TestRunCycleKeepsExistingAnchor(t *testing.T) {
	start := time.Now().Add(time.Hour)

	provider := &MockOddsProvider{name: "oddsfeed"}
	provider.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		fetchResult(start, []datasource.RunnerPrice{
			{Runner: "Alpha", Source: "exchange", Odds: decimal.NewFromFloat(6.0)},
		}), nil)

	races := &MockRaceRepository{}
	races.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	snapshots := &MockSnapshotRepository{}
	snapshots.On("OpenedRunners", mock.Anything, mock.Anything).Return(map[string]float64{"Alpha": 10.0}, nil)
	snapshots.On("InsertBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewEvaluationService([]datasource.OddsProvider{provider}, races, snapshots, testEngineConfig(), testLogger())

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 1)

	alpha := report.Verdicts[0]
	require.NotNil(t, alpha.AnchorPrice)
	assert.InDelta(t, 10.0, *alpha.AnchorPrice, 1e-9)
	require.NotNil(t, alpha.CompressionPct)
	assert.InDelta(t, 40.0, *alpha.CompressionPct, 1e-9)
	assert.Equal(t, models.SignalPremium, alpha.Signal)

	// An anchored runner must never produce another opening insert.
	snapshots.AssertNotCalled(t, "InsertOpening", mock.Anything, mock.Anything)
}

func TestRunCycleDemotesLostOpening(t *testing.T) {
	start := time.Now().Add(time.Hour)

	provider := &MockOddsProvider{name: "oddsfeed"}
	provider.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		fetchResult(start, []datasource.RunnerPrice{
			{Runner: "Alpha", Source: "exchange", Odds: decimal.NewFromFloat(6.0)},
		}), nil)

	races := &MockRaceRepository{}
	races.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	snapshots := &MockSnapshotRepository{}
	// Empty on the first load, then the concurrent winner's anchor on the
	// reload after the lost insert.
	snapshots.On("OpenedRunners", mock.Anything, mock.Anything).Return(map[string]float64{}, nil).Once()
	snapshots.On("OpenedRunners", mock.Anything, mock.Anything).Return(map[string]float64{"Alpha": 9.0}, nil).Once()
	snapshots.On("InsertOpening", mock.Anything, mock.Anything).Return(false, nil)
	snapshots.On("InsertBatch", mock.Anything, mock.MatchedBy(func(rows []repository.SnapshotRow) bool {
		return len(rows) == 1 && !rows[0].IsOpening
	})).Return(nil)

	svc := NewEvaluationService([]datasource.OddsProvider{provider}, races, snapshots, testEngineConfig(), testLogger())

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Verdicts, 1)

	// The persisted anchor wins over the locally computed one.
	alpha := report.Verdicts[0]
	require.NotNil(t, alpha.AnchorPrice)
	assert.InDelta(t, 9.0, *alpha.AnchorPrice, 1e-9)
	snapshots.AssertExpectations(t)
}

func TestRunCycleSurvivesProviderFailure(t *testing.T) {
	failing := &MockOddsProvider{name: "oddsfeed"}
	failing.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		nil, errors.New("upstream timeout"))

	races := &MockRaceRepository{}
	snapshots := &MockSnapshotRepository{}

	svc := NewEvaluationService([]datasource.OddsProvider{failing}, races, snapshots, testEngineConfig(), testLogger())

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Verdicts)
	assert.Equal(t, 1, report.ProviderError)
	races.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestLatestSnapshotLookup(t *testing.T) {
	raceID := uuid.New()
	obs := &models.Observation{RaceID: raceID, Runner: "Alpha", Source: "exchange", Odds: 3.5, Observed: time.Now()}

	snapshots := &MockSnapshotRepository{}
	snapshots.On("LatestByRunner", mock.Anything, raceID, "Alpha").Return(obs, nil)
	snapshots.On("LatestByRunner", mock.Anything, raceID, "Ghost").Return(nil, models.ErrNotFound)

	svc := NewEvaluationService(nil, &MockRaceRepository{}, snapshots, testEngineConfig(), testLogger())

	got, err := svc.LatestSnapshot(context.Background(), raceID, "Alpha")
	require.NoError(t, err)
	assert.Equal(t, obs, got)

	_, err = svc.LatestSnapshot(context.Background(), raceID, "Ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRunCycleMergesProvidersForOneRace(t *testing.T) {
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Minute)

	feed := &MockOddsProvider{name: "oddsfeed"}
	feed.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		fetchResult(start, []datasource.RunnerPrice{
			{Runner: "Alpha", Source: "bk1", Odds: decimal.NewFromFloat(10.0)},
		}), nil)

	venue := &MockOddsProvider{name: "exchange"}
	venue.On("FetchOdds", mock.Anything, mock.Anything, mock.Anything).Return(
		fetchResult(start, []datasource.RunnerPrice{
			{Runner: "Alpha", Source: "exchange", Odds: decimal.NewFromFloat(8.0)},
		}), nil)

	races := &MockRaceRepository{}
	races.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	snapshots := &MockSnapshotRepository{}
	snapshots.On("OpenedRunners", mock.Anything, mock.Anything).Return(map[string]float64{}, nil)
	snapshots.On("InsertOpening", mock.Anything, mock.Anything).Return(true, nil)
	snapshots.On("InsertBatch", mock.Anything, mock.Anything).Return(nil)

	svc := NewEvaluationService([]datasource.OddsProvider{feed, venue}, races, snapshots, testEngineConfig(), testLogger())

	report, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	// Both providers reported the same track and start, so they collapse
	// into one race with a cross-source consensus anchor of 9.
	assert.Equal(t, 1, report.RacesSeen)
	require.Len(t, report.Verdicts, 1)
	require.NotNil(t, report.Verdicts[0].AnchorPrice)
	assert.InDelta(t, 9.0, *report.Verdicts[0].AnchorPrice, 1e-9)
	races.AssertNumberOfCalls(t, "Upsert", 1)
}
