// Package main provides the entry point for the value-lay engine.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/value-lay/internal/config"
	"github.com/yourusername/value-lay/internal/database"
	"github.com/yourusername/value-lay/internal/datasource"
	"github.com/yourusername/value-lay/internal/health"
	"github.com/yourusername/value-lay/internal/logger"
	"github.com/yourusername/value-lay/internal/metrics"
	"github.com/yourusername/value-lay/internal/repository"
	"github.com/yourusername/value-lay/internal/scheduler"
	"github.com/yourusername/value-lay/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	appLog     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	repos      *repository.Repositories
	httpClient *datasource.RateLimitedHTTPClient
	evalSvc    *service.EvaluationService
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(runnerCmd)
	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "value-lay",
	Short: "Value detection and lay-sizing engine for horse racing markets",
	Long: `Tracks opening prices across odds providers, classifies price
compression against the opening anchor and sizes lay bets with a
commission-adjusted Kelly criterion.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine continuously on the configured schedule",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine()
	},
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run a single evaluation cycle and print the verdicts",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOnce(cmd.Context())
	},
}

var runnerCmd = &cobra.Command{
	Use:   "runner <race-id> <name>",
	Short: "Print the latest persisted snapshot for a runner",
	Args:  cobra.ExactArgs(2),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return showRunner(cmd.Context(), args[0], args[1])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("value-lay %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setup(ctx context.Context) error {
	var err error

	cfg, err = config.LoadWithDefaults(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			return fmt.Errorf("failed to load secrets: %w", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	appLog = logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Value-lay engine starting")

	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	appLog.Info("Database connection established")

	repos, err = repository.NewRepositories(db)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}

	httpLogger := log.New(os.Stdout, "provider-http: ", log.LstdFlags)
	httpClient = datasource.NewRateLimitedHTTPClient(datasource.DefaultHTTPClientConfig(), httpLogger)

	factory := datasource.NewFactory(log.New(os.Stdout, "provider: ", log.LstdFlags))
	providers, err := factory.NewProviders(cfg.Providers, httpClient)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}
	appLog.WithField("providers", len(providers)).Info("Odds providers initialized")

	evalSvc = service.NewEvaluationService(providers, repos.Race, repos.Snapshot, cfg.Engine, appLog)

	return nil
}

func runEngine() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer db.Close()
	defer httpClient.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(health.Config{
			ServiceName: cfg.App.Name,
			Version:     Version,
			Commit:      GitCommit,
			Port:        strconv.Itoa(cfg.Health.Port),
			Logger:      appLog,
			DB:          db,
		})
		if err := healthServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			appLog.WithField("port", cfg.Metrics.Port).Info("Metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				appLog.WithError(err).Error("Metrics server error")
			}
		}()
	}

	sched := scheduler.NewScheduler(evalSvc, appLog)
	if err := sched.ScheduleEvaluationCycle(cfg.Engine.PollIntervalSeconds); err != nil {
		return fmt.Errorf("failed to schedule evaluation cycle: %w", err)
	}
	if cfg.Engine.RacecardRefreshCron != "" {
		if err := sched.ScheduleRacecardRefresh(cfg.Engine.RacecardRefreshCron); err != nil {
			return fmt.Errorf("failed to schedule racecard refresh: %w", err)
		}
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if healthServer != nil {
		healthServer.SetReady(true)
	}

	appLog.WithFields(logrus.Fields{
		"poll_interval": cfg.PollInterval().String(),
		"next_run":      sched.GetNextRun(),
	}).Info("Engine running")

	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	if healthServer != nil {
		healthServer.SetReady(false)
	}
	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Error stopping scheduler")
	}
	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLog.WithError(err).Error("Error stopping metrics server")
		}
	}
	cancel()

	appLog.Info("Value-lay engine shut down")
	return nil
}

func runOnce(ctx context.Context) error {
	defer db.Close()
	defer httpClient.Close()

	report, err := evalSvc.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("evaluation cycle failed: %w", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Println(string(out))

	laysPlaced := 0
	for _, v := range report.Verdicts {
		if v.Decision.PlaceLay {
			laysPlaced++
		}
	}
	appLog.WithFields(logrus.Fields{
		"runners":   len(report.Verdicts),
		"place_lay": laysPlaced,
		"duration":  report.Duration.String(),
	}).Info("Evaluation cycle complete")

	return nil
}

func showRunner(ctx context.Context, rawRaceID, runner string) error {
	defer db.Close()
	defer httpClient.Close()

	raceID, err := uuid.Parse(rawRaceID)
	if err != nil {
		return fmt.Errorf("invalid race id %q: %w", rawRaceID, err)
	}

	race, err := repos.Race.GetByID(ctx, raceID)
	if err != nil {
		return fmt.Errorf("failed to load race: %w", err)
	}

	obs, err := evalSvc.LatestSnapshot(ctx, raceID, runner)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(struct {
		Track          string    `json:"track"`
		ScheduledStart time.Time `json:"scheduled_start"`
		Runner         string    `json:"runner"`
		Source         string    `json:"source"`
		Odds           float64   `json:"odds"`
		ObservedAt     time.Time `json:"observed_at"`
	}{
		Track:          race.Track,
		ScheduledStart: race.ScheduledStart,
		Runner:         obs.Runner,
		Source:         obs.Source,
		Odds:           obs.Odds,
		ObservedAt:     obs.Observed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render snapshot: %w", err)
	}
	fmt.Println(string(out))

	return nil
}
