// Package http exposes the validator over a JSON HTTP API.
package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"trade-ingestion-service/internal/app"
	"trade-ingestion-service/internal/observability/metrics"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/service/ingest"
)

// MaxBodyBytes caps the size of a validate request body.
const MaxBodyBytes = 10 << 20

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AnomalyResponse is the body of GET /v1/anomalies/{tradeId}.
type AnomalyResponse struct {
	TradeID string   `json:"trade_id"`
	Issues  []string `json:"issues"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/validate", validateHandler(application.Handler))
		r.Get("/schema", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, application.Handler.Schema())
		})
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, application.Handler.Stats())
		})
		r.Get("/anomalies/{tradeId}", anomalyHandler(application.Anomalies))
	})

	return r
}

func validateHandler(h *ingest.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := schema.DecodeRecords(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			renderError(w, r, http.StatusBadRequest, err)
			return
		}

		sourceName := r.URL.Query().Get("source")
		if sourceName == "" {
			sourceName = "http"
		}

		result, err := h.ValidateBatch(r.Context(), sourceName, records)
		if err != nil {
			if errors.Is(err, ingest.ErrBatchDropped) {
				renderError(w, r, http.StatusBadGateway, err)
				return
			}
			renderError(w, r, http.StatusInternalServerError, err)
			return
		}

		w.Header().Set("X-Batch-Id", result.BatchID)
		render.JSON(w, r, result.Report)
	}
}

func anomalyHandler(lookup app.AnomalyLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if lookup == nil {
			renderError(w, r, http.StatusNotImplemented, errors.New("anomaly lookup is not enabled"))
			return
		}

		tradeId := chi.URLParam(r, "tradeId")
		issues, found, err := lookup.LatestIssues(r.Context(), tradeId)
		if err != nil {
			renderError(w, r, http.StatusInternalServerError, err)
			return
		}
		if !found {
			renderError(w, r, http.StatusNotFound, errors.New("no anomaly recorded for "+tradeId))
			return
		}
		render.JSON(w, r, AnomalyResponse{TradeID: tradeId, Issues: issues})
	}
}

func renderError(w http.ResponseWriter, r *http.Request, status int, err error) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}

// requestMetrics records the route pattern, status and duration of every
// request.
func requestMetrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RecordRequest("http", r.Method+" "+route, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}
