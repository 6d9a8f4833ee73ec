package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/adforecast/internal/cache"
	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/httpx"
	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/modelstore"
	"github.com/AngelCh415/adforecast/internal/predictor"
	"github.com/AngelCh415/adforecast/internal/scheduler"
	"github.com/AngelCh415/adforecast/internal/service"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/telemetry"
	"github.com/AngelCh415/adforecast/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, cfg.OtelEndpoint, "adforecast")
	if err != nil {
		logger.Warn("tracing disabled", slog.String("err", err.Error()))
	}
	defer telemetry.Shutdown(context.Background(), tp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	tm := telemetry.NewMetrics(reg)

	blobs, err := modelstore.Open(ctx, modelstore.Options{
		Kind:         cfg.ModelStore,
		Path:         cfg.ModelPath,
		RedisAddr:    cfg.RedisAddr,
		PostgresConn: cfg.PostgresConn,
		BadgerDir:    cfg.BadgerDir,
	}, logger)
	if err != nil {
		logger.Error("model store", slog.String("kind", cfg.ModelStore), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer blobs.Close()

	var history store.HistoryStore = store.NewMemoryStore()
	if cfg.InfluxURL != "" {
		in := store.NewInfluxStore(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		if err := in.Ping(ctx); err != nil {
			logger.Warn("influx unavailable, history kept in memory", slog.String("err", err.Error()))
			in.Close()
		} else {
			defer in.Close()
			history = in
		}
	}

	fc, err := cache.NewTTL[string, []models.ForecastRecord](cfg.ForecastCacheSize, cfg.ForecastCacheTTL)
	if err != nil {
		logger.Error("forecast cache", slog.String("err", err.Error()))
		os.Exit(1)
	}

	trainCfg := predictor.DefaultTrainConfig()
	trainCfg.Forest.NumTrees = cfg.ForestTrees
	trainCfg.Forest.Seed = cfg.ForestSeed
	svc := service.New(service.Options{
		Train:       trainCfg,
		Blobs:       blobs,
		ModelKey:    cfg.ModelKey,
		History:     history,
		Cache:       fc,
		Metrics:     tm,
		Placeholder: cfg.PlaceholderStats,
		Logger:      logger,
	})
	if err := svc.Restore(ctx); err != nil {
		logger.Warn("persisted model ignored, train a fresh one", slog.String("err", err.Error()))
	}

	if cfg.RetrainSchedule != "" {
		sch, err := scheduler.New(cfg.RetrainSchedule, 10*time.Minute, func(ctx context.Context) error {
			_, err := svc.TrainFromStore(ctx)
			return err
		}, logger)
		if err != nil {
			logger.Error("retrain schedule", slog.String("err", err.Error()))
			os.Exit(1)
		}
		sch.Start()
		defer sch.Stop(context.Background())
		logger.Info("retrain scheduled", slog.Time("next", sch.Next()))
	}

	var limiter *rate.Limiter
	if cfg.TrainRatePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.TrainRatePerMin)), 1)
	}

	cl := ingest.NewHTTPClient(cfg.HTTPTimeout)
	etl := ingest.NewHistoryETL(cl, history, logger, cfg.HistoryURL, utils.NewBackoff(100*time.Millisecond, 2))

	r := httpx.NewRouter(logger, httpx.Deps{
		Forecast:     svc,
		ETL:          etl,
		History:      metrics.NewService(history),
		Telemetry:    tm,
		Gatherer:     reg,
		TrainLimiter: limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port), slog.String("model_store", cfg.ModelStore))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}
