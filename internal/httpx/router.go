package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/predictor"
	"github.com/AngelCh415/adforecast/internal/service"
	"github.com/AngelCh415/adforecast/internal/telemetry"
	"github.com/AngelCh415/adforecast/internal/utils"
)

const maxBody = 10 << 20

type Deps struct {
	Forecast  *service.Service
	ETL       *ingest.HistoryETL
	History   *metrics.Service
	Telemetry *telemetry.Metrics
	Gatherer  prometheus.Gatherer
	// nil disables the limit on /api/train
	TrainLimiter *rate.Limiter
}

type trainRequest struct {
	HistoricalData []models.RawRecord `json:"historical_data" validate:"required_without=UseStore"`
	UseStore       bool               `json:"use_store"`
}

type forecastRequest struct {
	HistoricalData []models.RawRecord `json:"historical_data" validate:"required,min=1"`
	DaysAhead      int                `json:"days_ahead" validate:"gte=1,lte=365"`
}

var validate = validator.New()

func NewRouter(log *slog.Logger, d Deps) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })

	if d.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Forecast.Health())
		})

		train := api.With()
		if d.TrainLimiter != nil {
			train = api.With(utils.RateLimit(d.TrainLimiter))
		}
		train.Post("/train", func(w http.ResponseWriter, r *http.Request) {
			var req trainRequest
			if !decode(w, r, &req) {
				return
			}
			var (
				res service.TrainResult
				err error
			)
			if req.UseStore {
				res, err = d.Forecast.TrainFromStore(r.Context())
			} else {
				res, err = d.Forecast.Train(r.Context(), req.HistoricalData)
			}
			if err != nil {
				writeErr(w, log, err)
				return
			}
			writeJSON(w, res)
		})

		api.Post("/predict", func(w http.ResponseWriter, r *http.Request) {
			req := forecastRequest{DaysAhead: 7}
			if !decode(w, r, &req) {
				return
			}
			out, err := d.Forecast.Predict(r.Context(), req.HistoricalData, req.DaysAhead)
			if err != nil {
				writeErr(w, log, err)
				return
			}
			writeJSON(w, map[string]any{"predictions": out, "days_ahead": req.DaysAhead})
		})

		api.Post("/recommendations", func(w http.ResponseWriter, r *http.Request) {
			req := forecastRequest{DaysAhead: 7}
			if !decode(w, r, &req) {
				return
			}
			out, err := d.Forecast.Recommend(r.Context(), req.HistoricalData, req.DaysAhead)
			if err != nil {
				writeErr(w, log, err)
				return
			}
			writeJSON(w, map[string]any{"recommendations": out, "days_ahead": req.DaysAhead})
		})

		api.Get("/model-stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, d.Forecast.Stats())
		})
	})

	mux.Post("/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("since")
		var since *time.Time
		if q != "" {
			t, err := time.Parse(models.DateLayout, q)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad since date (want YYYY-MM-DD)")
				return
			}
			since = &t
		}
		n, err := d.ETL.Run(r.Context(), since)
		if err != nil {
			writeErr(w, log, err)
			return
		}
		if d.Telemetry != nil {
			d.Telemetry.HistoryIngested.Add(float64(n))
		}
		writeJSON(w, map[string]any{"days": n})
	})

	mux.Get("/history/daily", func(w http.ResponseWriter, r *http.Request) {
		rows, err := d.History.Daily(r.Context(), r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, rows)
	})

	mux.Post("/history/extend", func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if q := r.URL.Query().Get("days"); q != "" {
			v, err := strconv.Atoi(q)
			if err != nil || v < 1 {
				writeError(w, http.StatusBadRequest, "days must be a positive integer")
				return
			}
			days = v
		}
		n, err := d.Forecast.ExtendHistory(r.Context(), days)
		if err != nil {
			writeErr(w, log, err)
			return
		}
		writeJSON(w, map[string]any{"appended": n})
	})

	return mux
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// statusFor maps service errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, predictor.ErrInput), errors.Is(err, predictor.ErrShapeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, predictor.ErrUntrained), errors.Is(err, service.ErrNoHistory):
		return http.StatusConflict
	case errors.Is(err, ingest.ErrNoSource):
		return http.StatusServiceUnavailable
	case errors.Is(err, predictor.ErrPersistence):
		return http.StatusInternalServerError
	default:
		var se *ingest.StatusError
		if errors.As(err, &se) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, log *slog.Logger, err error) {
	code := statusFor(err)
	if code >= 500 {
		log.Error("request failed", slog.String("err", err.Error()))
	}
	writeError(w, code, err.Error())
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
