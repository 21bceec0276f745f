package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/buck0five/music-playlist-generator/internal/clockimport"
	"github.com/buck0five/music-playlist-generator/internal/config"
	"github.com/buck0five/music-playlist-generator/internal/db"
	"github.com/buck0five/music-playlist-generator/internal/eligibility"
	"github.com/buck0five/music-playlist-generator/internal/eventbus"
	"github.com/buck0five/music-playlist-generator/internal/events"
	"github.com/buck0five/music-playlist-generator/internal/logging"
	"github.com/buck0five/music-playlist-generator/internal/models"
	"github.com/buck0five/music-playlist-generator/internal/playlist"
	"github.com/buck0five/music-playlist-generator/internal/playlog"
	"github.com/buck0five/music-playlist-generator/internal/runlock"
	"github.com/buck0five/music-playlist-generator/internal/schedule"
	"github.com/buck0five/music-playlist-generator/internal/tagrank"
	"github.com/buck0five/music-playlist-generator/internal/telemetry"
)

var (
	logger zerolog.Logger
	cfg    *config.Config

	flagStation string
	flagAt      string
	flagLimit   int
)

var rootCmd = &cobra.Command{
	Use:   "playlistgen",
	Short: "Playlist generation core for broadcast stations",
	Long:  "playlistgen resolves clock templates, filters content through eligibility rules, and assembles per-hour playlists for broadcast stations.",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	RunE:  runMigrate,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one playlist hour for a station",
	RunE:  runGenerate,
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank eligible content for a station by tag preference",
	RunE:  runRank,
}

var importClocksCmd = &cobra.Command{
	Use:   "import-clocks <file>",
	Short: "Import clock templates and schedules from YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportClocks,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the generation loop and metrics endpoint",
	RunE:  runDaemon,
}

func init() {
	generateCmd.Flags().StringVar(&flagStation, "station", "", "station id (required)")
	generateCmd.Flags().StringVar(&flagAt, "at", "", "generation instant, RFC 3339 (default now)")
	_ = generateCmd.MarkFlagRequired("station")

	rankCmd.Flags().StringVar(&flagStation, "station", "", "station id (required)")
	rankCmd.Flags().StringVar(&flagAt, "at", "", "evaluation instant, RFC 3339 (default now)")
	rankCmd.Flags().IntVar(&flagLimit, "limit", 20, "maximum items to print, 0 for all")
	_ = rankCmd.MarkFlagRequired("station")

	rootCmd.AddCommand(migrateCmd, generateCmd, rankCmd, importClocksCmd, daemonCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func parseAt() (time.Time, error) {
	if flagAt == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, flagAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --at: %w", err)
	}
	return at, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return err
	}
	logger.Info().Msg("migrations applied")
	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	at, err := parseAt()
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	assembler, cleanup := buildAssembler(database)
	defer cleanup()

	result, err := assembler.Generate(cmd.Context(), flagStation, at)
	if err != nil {
		return err
	}

	for _, item := range result.Items {
		fmt.Printf("%3d  +%4ds  %-12s  %s", item.Position, item.OffsetSeconds, item.Kind, item.Title)
		if item.Artist != "" {
			fmt.Printf("  [%s]", item.Artist)
		}
		fmt.Println()
	}
	for _, warning := range result.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	return nil
}

func runRank(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	at, err := parseAt()
	if err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	ranker := tagrank.New(database, eligibility.Rules{ArtistSeparation: cfg.ArtistSeparation}, logger)
	ranked, err := ranker.Generate(cmd.Context(), flagStation, at, flagLimit)
	if err != nil {
		return err
	}

	for i, c := range ranked {
		fmt.Printf("%3d  %-12s  %s", i+1, c.Kind, c.Title)
		if c.Artist != "" {
			fmt.Printf("  [%s]", c.Artist)
		}
		fmt.Println()
	}
	return nil
}

func runImportClocks(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	importer := clockimport.New(database, logger)
	summary, err := importer.Import(cmd.Context(), f)
	if err != nil {
		return err
	}

	fmt.Printf("templates created: %d, updated: %d; schedules created: %d\n",
		summary.TemplatesCreated, summary.TemplatesUpdated, summary.SchedulesCreated)
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("playlistgen daemon starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "playlistgen",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	assembler, cleanup := buildAssembler(database)
	defer cleanup()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Handle("/metrics", telemetry.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{Addr: cfg.MetricsBind, Handler: router}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go generationLoop(ctx, database, assembler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")
	cancel()

	timeoutCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("playlistgen stopped")
	return nil
}

// generationLoop regenerates every station on the daemon interval.
func generationLoop(ctx context.Context, database *gorm.DB, assembler *playlist.Assembler) {
	ticker := time.NewTicker(cfg.DaemonInterval)
	defer ticker.Stop()

	for {
		runAllStations(ctx, database, assembler)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runAllStations(ctx context.Context, database *gorm.DB, assembler *playlist.Assembler) {
	var stations []models.Station
	if err := database.WithContext(ctx).Find(&stations).Error; err != nil {
		logger.Error().Err(err).Msg("failed to list stations")
		return
	}

	now := time.Now()
	for _, station := range stations {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		result, err := assembler.Generate(runCtx, station.ID, now)
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("station_id", station.ID).Msg("generation run failed")
			continue
		}
		logger.Info().Str("station_id", station.ID).Int("items", len(result.Items)).Msg("generation run complete")
	}
}

// buildAssembler wires the assembler with the optional Redis lock and
// NATS bus per configuration. The cleanup function closes what was
// opened.
func buildAssembler(database *gorm.DB) (*playlist.Assembler, func()) {
	resolver := schedule.NewResolver(database, logger)
	plays := playlog.New(database, logger)

	var locks *runlock.Lock
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		locks = runlock.New(redisClient, cfg.RunLockTTL, logger)
	}

	var bus interface {
		Publish(events.EventType, events.Payload)
	}
	var natsBus *eventbus.NATSBus
	if cfg.NATSEnabled {
		nb, err := eventbus.NewNATSBus(cfg.NATSURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("NATS bus unavailable, using in-process events")
			bus = events.NewBus()
		} else {
			natsBus = nb
			bus = nb
		}
	} else {
		bus = events.NewBus()
	}

	policy := playlist.Policy{
		EmptySlot:        cfg.EmptySlotPolicy,
		ArtistSeparation: cfg.ArtistSeparation,
	}
	assembler := playlist.New(database, resolver, plays, locks, bus, policy, logger)

	cleanup := func() {
		if natsBus != nil {
			if err := natsBus.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close NATS bus")
			}
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("failed to close redis client")
			}
		}
	}
	return assembler, cleanup
}
