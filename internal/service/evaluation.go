// Package service orchestrates the evaluation cycle: fetching odds from
// providers, anchoring opening prices, classifying compression and producing
// per-runner lay verdicts.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/value-lay/internal/config"
	"github.com/yourusername/value-lay/internal/datasource"
	"github.com/yourusername/value-lay/internal/engine"
	"github.com/yourusername/value-lay/internal/logger"
	"github.com/yourusername/value-lay/internal/metrics"
	"github.com/yourusername/value-lay/internal/models"
	"github.com/yourusername/value-lay/internal/repository"
)

const defaultLookahead = 24 * time.Hour

// RunnerVerdict is the evaluation outcome for one runner in one cycle.
type RunnerVerdict struct {
	RaceID         uuid.UUID       `json:"race_id"`
	Track          string          `json:"track"`
	Runner         string          `json:"runner"`
	AnchorPrice    *float64        `json:"anchor_price,omitempty"`
	CurrentPrice   *float64        `json:"current_price,omitempty"`
	CompressionPct *float64        `json:"compression_pct,omitempty"`
	Signal         models.Signal   `json:"signal"`
	Decision       models.Decision `json:"decision"`
}

// CycleReport summarizes one evaluation cycle.
type CycleReport struct {
	Verdicts      []RunnerVerdict             `json:"verdicts"`
	Quotas        map[string]datasource.Quota `json:"quotas,omitempty"`
	ProviderError int                         `json:"provider_errors"`
	RacesSeen     int                         `json:"races_seen"`
	Duration      time.Duration               `json:"duration"`
}

// EvaluationService runs the fetch-anchor-classify-size workflow.
type EvaluationService struct {
	providers []datasource.OddsProvider
	races     repository.RaceRepository
	snapshots repository.SnapshotRepository
	cfg       config.EngineConfig
	anchors   *cache.Cache
	logger    *logrus.Logger
	audit     *logger.DecisionLogger
	lookahead time.Duration
}

// NewEvaluationService creates a new evaluation service.
func NewEvaluationService(
	providers []datasource.OddsProvider,
	races repository.RaceRepository,
	snapshots repository.SnapshotRepository,
	cfg config.EngineConfig,
	baseLogger *logrus.Logger,
) *EvaluationService {
	ttl := time.Duration(cfg.AnchorCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &EvaluationService{
		providers: providers,
		races:     races,
		snapshots: snapshots,
		cfg:       cfg,
		anchors:   cache.New(ttl, 2*ttl),
		logger:    baseLogger,
		audit:     logger.NewDecisionLogger(baseLogger),
		lookahead: defaultLookahead,
	}
}

// RunCycle executes one full evaluation cycle across all enabled providers
// and returns the per-runner verdicts. Provider failures are logged and
// counted but do not abort the cycle; persistence failures for a race skip
// that race only.
func (s *EvaluationService) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := time.Now()
	report := &CycleReport{
		Verdicts: []RunnerVerdict{},
		Quotas:   make(map[string]datasource.Quota),
	}

	grouped := s.fetchAll(ctx, report)
	report.RacesSeen = len(grouped)

	for _, group := range grouped {
		if err := s.evaluateRace(ctx, group, report); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"track": group.track,
				"start": group.start,
			}).Error("Failed to evaluate race")
		}
	}

	report.Duration = time.Since(start)
	metrics.RecordCycle(report.Duration.Seconds(), len(report.Verdicts))

	s.logger.WithFields(logrus.Fields{
		"races":           report.RacesSeen,
		"runners":         len(report.Verdicts),
		"provider_errors": report.ProviderError,
		"duration":        report.Duration.String(),
	}).Info("Evaluation cycle complete")

	return report, nil
}

// RefreshRacecard reports the upcoming races inside the configured
// field-size bounds. It runs on a slower cadence than the evaluation cycle
// and exists so operators can see what the engine is tracking.
func (s *EvaluationService) RefreshRacecard(ctx context.Context) ([]*models.Race, error) {
	races, err := s.races.ListUpcoming(ctx, s.cfg.MinFieldSize, s.cfg.MaxFieldSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming races: %w", err)
	}

	for _, race := range races {
		s.logger.WithFields(logrus.Fields{
			"race_id":    race.ID,
			"track":      race.Track,
			"start":      race.ScheduledStart,
			"field_size": race.FieldSize,
		}).Debug("Tracking upcoming race")
	}

	s.logger.WithField("count", len(races)).Info("Racecard refreshed")
	return races, nil
}

// LatestSnapshot returns the most recent persisted observation for a runner,
// models.ErrNotFound when none has been recorded.
func (s *EvaluationService) LatestSnapshot(ctx context.Context, raceID uuid.UUID, runner string) (*models.Observation, error) {
	obs, err := s.snapshots.LatestByRunner(ctx, raceID, runner)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return obs, nil
}

// raceGroup holds all observations for one race, merged across providers.
type raceGroup struct {
	sourceID string
	track    string
	start    time.Time
	prices   []datasource.RunnerPrice
}

// fetchAll pulls odds from every enabled provider and merges races across
// providers by normalized track and start time. Quota is carried on each
// result by value; this is the only place it is read.
func (s *EvaluationService) fetchAll(ctx context.Context, report *CycleReport) map[string]*raceGroup {
	now := time.Now()
	grouped := make(map[string]*raceGroup)

	for _, provider := range s.providers {
		if !provider.IsEnabled() {
			continue
		}

		result, err := provider.FetchOdds(ctx, now, now.Add(s.lookahead))
		if err != nil {
			report.ProviderError++
			metrics.RecordProviderRequest(provider.Name(), "error", 0, false)
			s.logger.WithError(err).WithField("provider", provider.Name()).Error("Provider fetch failed")
			continue
		}

		metrics.RecordProviderRequest(provider.Name(), "success", result.Quota.Remaining, result.Quota.Known)
		report.Quotas[provider.Name()] = result.Quota
		if result.Quota.Known {
			s.logger.WithFields(logrus.Fields{
				"provider":  provider.Name(),
				"used":      result.Quota.Used,
				"remaining": result.Quota.Remaining,
			}).Debug("Provider quota observed")
		}

		for _, race := range result.Races {
			key := raceKey(race.Track, race.StartTime)
			group, ok := grouped[key]
			if !ok {
				group = &raceGroup{sourceID: key, track: race.Track, start: race.StartTime}
				grouped[key] = group
			}
			group.prices = append(group.prices, race.Prices...)
		}
	}

	return grouped
}

// evaluateRace anchors, classifies and sizes every runner in one race group.
func (s *EvaluationService) evaluateRace(ctx context.Context, group *raceGroup, report *CycleReport) error {
	race := &models.Race{
		ID:             uuid.New(),
		SourceID:       group.sourceID,
		Track:          group.track,
		ScheduledStart: group.start,
		FieldSize:      countRunners(group.prices),
	}
	if err := s.races.Upsert(ctx, race); err != nil {
		return fmt.Errorf("failed to upsert race: %w", err)
	}

	observed := time.Now()
	batch := make([]models.Observation, 0, len(group.prices))
	for _, price := range group.prices {
		batch = append(batch, models.Observation{
			RaceID:   race.ID,
			Runner:   price.Runner,
			Source:   price.Source,
			Odds:     price.Odds.InexactFloat64(),
			Observed: observed,
		})
	}

	opened, err := s.openedRunners(ctx, race.ID)
	if err != nil {
		return fmt.Errorf("failed to load opened runners: %w", err)
	}

	resolution := engine.ResolveAnchors(batch, opened)

	if err := s.persistBatch(ctx, race, batch, &resolution, opened); err != nil {
		return err
	}

	snapshots := engine.BuildSnapshots(batch, s.cfg.ExecutionSource)
	for runner, snap := range snapshots {
		verdict := s.evaluateRunner(race, runner, snap, resolution.Runners[runner])
		report.Verdicts = append(report.Verdicts, verdict)
	}

	return nil
}

// persistBatch writes opening rows through the uniqueness backstop and the
// rest as regular snapshots. An opening insert that loses the race to a
// concurrent cycle is demoted to a regular row and the persisted anchor
// replaces the locally computed one.
func (s *EvaluationService) persistBatch(
	ctx context.Context,
	race *models.Race,
	batch []models.Observation,
	resolution *engine.BatchResolution,
	opened map[string]float64,
) error {
	var regular []repository.SnapshotRow
	lostRace := false

	for i := range batch {
		obs := batch[i]
		if !resolution.OpeningFlags[i] {
			regular = append(regular, repository.SnapshotRow{Observation: obs})
			continue
		}

		anchor := resolution.Runners[obs.Runner]
		row := repository.SnapshotRow{
			Observation: obs,
			IsOpening:   true,
			AnchorPrice: &anchor.AnchorPrice,
		}

		won, err := s.snapshots.InsertOpening(ctx, row)
		if err != nil {
			return fmt.Errorf("failed to insert opening row: %w", err)
		}
		if won {
			metrics.AnchorsCreatedTotal.Inc()
			s.audit.LogAnchorCreated(race.ID.String(), obs.Runner, anchor.AnchorPrice, anchor.Sources)
			opened[obs.Runner] = anchor.AnchorPrice
			continue
		}

		metrics.AnchorRacesLostTotal.Inc()
		s.audit.LogAnchorRaceLost(race.ID.String(), obs.Runner)
		regular = append(regular, repository.SnapshotRow{Observation: obs})
		lostRace = true
	}

	if lostRace {
		// The persisted anchors are authoritative; refetch and fold them
		// back into this cycle's resolution.
		persisted, err := s.snapshots.OpenedRunners(ctx, race.ID)
		if err != nil {
			return fmt.Errorf("failed to reload opened runners: %w", err)
		}
		for runner, price := range persisted {
			opened[runner] = price
			r := resolution.Runners[runner]
			r.IsNewAnchor = false
			r.AnchorPrice = price
			resolution.Runners[runner] = r
		}
	}

	s.anchors.SetDefault(race.ID.String(), opened)

	if len(regular) > 0 {
		if err := s.snapshots.InsertBatch(ctx, regular); err != nil {
			return fmt.Errorf("failed to insert snapshot batch: %w", err)
		}
	}

	return nil
}

// evaluateRunner classifies compression and runs the decision pipeline for
// one runner.
func (s *EvaluationService) evaluateRunner(
	race *models.Race,
	runner string,
	snap *models.PriceSnapshot,
	anchor engine.AnchorResolution,
) RunnerVerdict {
	var anchorPrice *float64
	if anchor.AnchorPrice > 1 {
		p := anchor.AnchorPrice
		anchorPrice = &p
	}

	current := snap.ReferencePrice()
	compressionPct, signal := engine.Classify(anchorPrice, current, s.cfg.Thresholds)
	metrics.RecordSignal(string(signal))

	decision := engine.Evaluate(engine.EvaluationInput{
		AnchorPrice:    anchorPrice,
		ExecutionPrice: current,
		ConsensusPrice: snap.Consensus,
		Model:          s.cfg.Model,
		Sizing:         s.cfg.Sizing,
	})
	if decision.PlaceLay {
		metrics.LayVerdictsTotal.Inc()
	}

	s.audit.LogVerdict(race.ID.String(), runner, signal, compressionPct, &decision)

	return RunnerVerdict{
		RaceID:         race.ID,
		Track:          race.Track,
		Runner:         runner,
		AnchorPrice:    anchorPrice,
		CurrentPrice:   current,
		CompressionPct: compressionPct,
		Signal:         signal,
		Decision:       decision,
	}
}

// openedRunners returns the opened-runner map for a race, served from the
// TTL cache when fresh. The returned map is a private copy the caller may
// mutate.
func (s *EvaluationService) openedRunners(ctx context.Context, raceID uuid.UUID) (map[string]float64, error) {
	if cached, ok := s.anchors.Get(raceID.String()); ok {
		if m, ok := cached.(map[string]float64); ok {
			return copyAnchorMap(m), nil
		}
	}

	opened, err := s.snapshots.OpenedRunners(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if opened == nil {
		opened = make(map[string]float64)
	}

	s.anchors.SetDefault(raceID.String(), copyAnchorMap(opened))
	return opened, nil
}

func copyAnchorMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func countRunners(prices []datasource.RunnerPrice) int {
	seen := make(map[string]struct{}, len(prices))
	for _, p := range prices {
		seen[p.Runner] = struct{}{}
	}
	return len(seen)
}

// raceKey normalizes a race identity across providers so the same race
// reported by several feeds merges into one group.
func raceKey(track string, start time.Time) string {
	return strings.ToLower(strings.TrimSpace(track)) + "|" + start.UTC().Truncate(time.Minute).Format(time.RFC3339)
}
