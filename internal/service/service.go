// Package service owns the live model: it trains, serves forecasts and
// recommendations, and keeps the model persisted across restarts.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AngelCh415/adforecast/internal/advisor"
	"github.com/AngelCh415/adforecast/internal/cache"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/modelstore"
	"github.com/AngelCh415/adforecast/internal/predictor"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/telemetry"
)

var ErrNoHistory = errors.New("no stored history")

type Options struct {
	Train       predictor.TrainConfig
	Blobs       modelstore.BlobStore
	ModelKey    string
	History     store.HistoryStore
	Cache       *cache.TTL[string, []models.ForecastRecord]
	Metrics     *telemetry.Metrics
	Placeholder bool
	Logger      *slog.Logger
}

type Service struct {
	mu      sync.RWMutex
	state   *predictor.ModelState
	version string

	trainCfg    predictor.TrainConfig
	blobs       modelstore.BlobStore
	key         string
	history     store.HistoryStore
	cache       *cache.TTL[string, []models.ForecastRecord]
	metrics     *telemetry.Metrics
	placeholder bool
	log         *slog.Logger
}

func New(opts Options) *Service {
	s := &Service{
		state:       predictor.NewModelState(),
		trainCfg:    opts.Train,
		blobs:       opts.Blobs,
		key:         opts.ModelKey,
		history:     opts.History,
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		placeholder: opts.Placeholder,
		log:         opts.Logger,
	}
	if s.blobs == nil {
		s.blobs = modelstore.Nop{}
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.trainCfg.Logger = s.log
	return s
}

type TrainResult struct {
	Status       string             `json:"status"`
	Message      string             `json:"message"`
	LastTrained  string             `json:"last_trained"`
	DataPoints   int                `json:"data_points"`
	Accuracy     map[string]float64 `json:"accuracy"`
	ModelVersion string             `json:"model_version"`
	Persisted    bool               `json:"persisted"`
}

// Train fits a new model on records and swaps it in. The previous model keeps
// serving until the swap and stays in place if training fails. A failure to
// persist the new model is logged and reported in the result.
func (s *Service) Train(ctx context.Context, records []models.RawRecord) (res TrainResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "service.Train", attribute.Int("records", len(records)))
	defer func() { telemetry.EndSpan(span, err) }()
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.TrainTotal.WithLabelValues(telemetry.Outcome(err)).Inc()
			if err == nil {
				s.metrics.TrainDuration.Observe(time.Since(start).Seconds())
			}
		}
	}()

	fresh := predictor.NewModelState()
	if _, err := predictor.Train(fresh, records, s.trainCfg); err != nil {
		return TrainResult{}, err
	}
	version := uuid.NewString()

	s.mu.Lock()
	s.state, s.version = fresh, version
	s.mu.Unlock()
	if s.cache != nil {
		s.cache.Purge()
	}
	if s.metrics != nil {
		s.metrics.ModelTrained.Set(1)
	}

	persisted := s.persist(ctx, fresh)
	snap := fresh.Snapshot()
	s.log.Info("model trained", slog.String("version", version), slog.Int("data_points", snap.DataPoints), slog.Bool("persisted", persisted))
	return TrainResult{
		Status:       "success",
		Message:      "model trained",
		LastTrained:  snap.LastTrained,
		DataPoints:   snap.DataPoints,
		Accuracy:     snap.Accuracy,
		ModelVersion: version,
		Persisted:    persisted,
	}, nil
}

// TrainFromStore trains on the full stored history.
func (s *Service) TrainFromStore(ctx context.Context) (TrainResult, error) {
	if s.history == nil {
		return TrainResult{}, ErrNoHistory
	}
	recs, err := s.history.Range(ctx, time.Time{}, time.Time{})
	if err != nil {
		return TrainResult{}, fmt.Errorf("read history: %w", err)
	}
	if len(recs) == 0 {
		return TrainResult{}, ErrNoHistory
	}
	return s.Train(ctx, recs)
}

func (s *Service) persist(ctx context.Context, st *predictor.ModelState) bool {
	blob, err := predictor.MarshalState(st)
	if err == nil {
		err = s.blobs.Save(ctx, s.key, blob)
	}
	if err != nil {
		s.log.Warn("model not persisted", slog.String("err", err.Error()))
		return false
	}
	return true
}

// Restore loads a persisted model. Nothing saved is not an error; a blob that
// cannot be read leaves the service untrained and returns an ErrPersistence.
func (s *Service) Restore(ctx context.Context) error {
	blob, err := s.blobs.Load(ctx, s.key)
	if errors.Is(err, modelstore.ErrNotFound) {
		s.log.Info("no persisted model, starting untrained")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load: %v", predictor.ErrPersistence, err)
	}
	st, err := predictor.UnmarshalState(blob)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state, s.version = st, uuid.NewString()
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ModelTrained.Set(1)
	}
	s.log.Info("model restored", slog.Time("trained_at", st.Stats.TrainedAt))
	return nil
}

// Predict forecasts days ahead of records. Results are cached per model
// version, history and horizon; callers get their own copy.
func (s *Service) Predict(ctx context.Context, records []models.RawRecord, days int) (out []models.ForecastRecord, err error) {
	_, span := telemetry.StartSpan(ctx, "service.Predict", attribute.Int("records", len(records)), attribute.Int("days", days))
	defer func() { telemetry.EndSpan(span, err) }()
	defer func() {
		if s.metrics != nil {
			s.metrics.PredictTotal.WithLabelValues(telemetry.Outcome(err)).Inc()
		}
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	key := ""
	if s.cache != nil && s.state.Trained() {
		key = cacheKey(s.version, records, days)
		if f, ok := s.cache.Get(key); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return slices.Clone(f), nil
		}
	}
	out, err = predictor.PredictNextDays(s.state, records, days)
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.cache.Set(key, slices.Clone(out))
	}
	return out, nil
}

// Recommend requires a trained model. A forecast failure is logged and does
// not block the recommendations.
func (s *Service) Recommend(ctx context.Context, records []models.RawRecord, days int) ([]advisor.Recommendation, error) {
	if !s.Trained() {
		return nil, predictor.ErrUntrained
	}
	if _, err := s.Predict(ctx, records, days); err != nil {
		s.log.Warn("forecast for recommendations failed", slog.String("err", err.Error()))
	}
	return advisor.Advise(records, days), nil
}

// ExtendHistory forecasts days past the stored history and writes the
// forecast back as raw records.
func (s *Service) ExtendHistory(ctx context.Context, days int) (int, error) {
	if s.history == nil {
		return 0, ErrNoHistory
	}
	recs, err := s.history.Range(ctx, time.Time{}, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("read history: %w", err)
	}
	if len(recs) == 0 {
		return 0, ErrNoHistory
	}
	fc, err := s.Predict(ctx, recs, days)
	if err != nil {
		return 0, err
	}
	all, err := predictor.AugmentHistory(recs, fc)
	if err != nil {
		return 0, err
	}
	added := all[len(recs):]
	if err := s.history.WriteRecords(ctx, added); err != nil {
		return 0, fmt.Errorf("write history: %w", err)
	}
	return len(added), nil
}

func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Trained()
}

// Stats returns the model statistics. An untrained service answers with
// flagged placeholder values when placeholder mode is on.
func (s *Service) Stats() predictor.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.state.Trained() && s.placeholder {
		return predictor.PlaceholderSnapshot(time.Now().UnixNano())
	}
	return s.state.Snapshot()
}

type Health struct {
	Status       string       `json:"status"`
	ModelLoaded  bool         `json:"model_loaded"`
	LastTrained  string       `json:"last_trained,omitempty"`
	ModelVersion string       `json:"model_version,omitempty"`
	Cache        *cache.Stats `json:"forecast_cache,omitempty"`
}

func (s *Service) Health() Health {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.state.Snapshot()
	h := Health{
		Status:       "healthy",
		ModelLoaded:  snap.ModelTrained,
		LastTrained:  snap.LastTrained,
		ModelVersion: s.version,
	}
	if s.cache != nil {
		cs := s.cache.Stats()
		h.Cache = &cs
	}
	return h
}

func cacheKey(version string, records []models.RawRecord, days int) string {
	h := sha256.New()
	h.Write([]byte(version))
	json.NewEncoder(h).Encode(records)
	h.Write([]byte(strconv.Itoa(days)))
	return hex.EncodeToString(h.Sum(nil))
}
