package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saa-quiz-service/internal/app"
	"saa-quiz-service/internal/config"
	"saa-quiz-service/internal/infra/jsonfile"
	"saa-quiz-service/internal/infra/memory"
	pgstore "saa-quiz-service/internal/infra/postgres"
	redisstore "saa-quiz-service/internal/infra/redis"
	"saa-quiz-service/internal/logger"
	"saa-quiz-service/internal/metrics"
	transport "saa-quiz-service/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = config.Default().Server.Port
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handler, cleanup, err := buildHandler(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Info("starting quiz service", zap.String("addr", server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildHandler wires storage, banks and services from cfg. The returned cleanup
// releases backend connections.
func buildHandler(ctx context.Context, cfg config.Config, log *zap.Logger, reg *prometheus.Registry) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}
	gin.SetMode(ginMode(cfg.Log.Level))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	var db *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		db = bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL))), pgdialect.New())
		closers = append(closers, func() { _ = db.Close() })
	}

	loaders := map[string]app.BankLoader{
		config.LoaderFile: jsonfile.NewBankLoader(cfg.Quiz.BankDir),
	}
	if pool != nil {
		loaders[config.LoaderPostgres] = pgstore.NewBankLoader(pool)
	}
	specs := make([]app.BankSpec, 0, len(cfg.Banks))
	for _, id := range cfg.BankIDs() {
		b := cfg.Banks[id]
		specs = append(specs, app.BankSpec{ID: id, Title: b.Title, Source: b.Source, Loader: b.LoaderName()})
	}
	catalog, err := app.NewCatalog(specs, loaders)
	if err != nil {
		return fail(err)
	}

	bankTTL := config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisstore.NewBankRepository(redisClient, catalog, bankTTL)
	} else {
		banks = memory.NewBankRepository(catalog, bankTTL)
	}

	var store app.Store
	switch cfg.Storage.Driver {
	case config.DriverJSONFile:
		fileStore, err := jsonfile.Open(cfg.Storage.Path)
		if err != nil {
			return fail(err)
		}
		store = fileStore
	case config.DriverRedis:
		store = redisstore.NewStore(redisClient)
	case config.DriverPostgres:
		store = pgstore.NewStore(db)
	default:
		store = memory.NewStore()
	}

	var attempts app.AttemptStore
	if redisClient != nil {
		attempts = redisstore.NewAttemptStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		attempts = memory.NewAttemptStore()
	}

	recorder := metrics.New(reg)
	aggregator := app.NewAggregator(store, cfg.Scoring, loc)
	reports := app.NewReportService(store, store, cfg.Quiz.TopSuccessThreshold)
	homework := app.NewHomeworkService(store)
	play := app.NewPlayService(app.PlayDeps{
		Tracker:    app.NewTracker(banks, cfg.Quiz.ChallengeSize),
		Aggregator: aggregator,
		Attempts:   attempts,
		Users:      store,
		Homework:   store,
		Reports:    reports,
		Feed:       app.NewFeed(),
		Metrics:    recorder,
		Logger:     log,
	})

	handler := transport.NewHandler(transport.HandlerDeps{
		Users:    app.NewUserService(store, log),
		Play:     play,
		Reports:  reports,
		Homework: homework,
		Catalog:  catalog,
		Today:    aggregator.Today,
		Logger:   log,

		AdminPassword: cfg.Admin.Password,
	})
	router := transport.NewRouter(transport.RouterDeps{
		Handler:  handler,
		WS:       transport.NewWSHandler(play, log),
		Metrics:  recorder,
		Gatherer: reg,
	})
	return router, cleanup, nil
}

// ginMode keeps gin's route dump and debug warnings for debug logging only.
func ginMode(logLevel string) string {
	if logLevel == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
