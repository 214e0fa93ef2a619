package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/geowatch/geo-events-bot/internal/models"
	"github.com/geowatch/geo-events-bot/internal/pipeline"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 200
	maxAnalyzeBody    = 4 << 20
)

// Pipeline is the trigger surface the HTTP layer drives
type Pipeline interface {
	RunFullCycle(ctx context.Context) (*models.CycleSummary, error)
	RunFetchOnly(ctx context.Context, group string) ([]models.RawItem, error)
	RunAnalyzeOnly(ctx context.Context, items []models.RawItem) ([]models.CandidateEvent, error)
	RecentEvents(ctx context.Context, limit int) ([]models.PersistedEvent, error)
	ArchivedCycles(ctx context.Context, day time.Time) ([]*models.CycleSummary, error)
	GetMetrics() string
}

// HealthFunc reports whether backing stores are reachable
type HealthFunc func(ctx context.Context) error

// CycleResponse is returned by POST /cycles
type CycleResponse struct {
	EventsProcessed int                     `json:"events_processed"`
	Events          []models.PersistedEvent `json:"events"`
	Summary         *models.CycleSummary    `json:"summary"`
	Error           string                  `json:"error,omitempty"`
}

type analyzeRequest struct {
	Items []models.RawItem `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter wires the HTTP endpoints. metrics and health may be nil.
func NewRouter(p Pipeline, metrics http.Handler, health HealthFunc) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler(health)).Methods("GET")
	router.HandleFunc("/status", statusHandler(p)).Methods("GET")
	router.HandleFunc("/events", eventsHandler(p)).Methods("GET")
	router.HandleFunc("/cycles", cycleHandler(p)).Methods("POST")
	router.HandleFunc("/cycles/{day}", archivedCyclesHandler(p)).Methods("GET")
	router.HandleFunc("/fetch/{group}", fetchHandler(p)).Methods("POST")
	router.HandleFunc("/analyze", analyzeHandler(p)).Methods("POST")
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}

	return router
}

func healthHandler(health HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if health != nil {
			if err := health(r.Context()); err != nil {
				logrus.Warnf("Health check failed: %v", err)
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}
		writeJSON(w, code, map[string]string{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func statusHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(p.GetMetrics()))
	}
}

func eventsHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultEventLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxEventLimit)
		}

		events, err := p.RecentEvents(r.Context(), limit)
		if err != nil {
			logrus.Errorf("Failed to list events: %v", err)
			writeError(w, http.StatusServiceUnavailable, "event store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// cycleHandler runs a cycle inline, or in the background with ?async=true
func cycleHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
			go func() {
				if _, err := p.RunFullCycle(context.WithoutCancel(r.Context())); err != nil {
					logrus.Errorf("Manual pipeline cycle failed: %v", err)
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"message": "Pipeline cycle triggered"})
			return
		}

		summary, err := p.RunFullCycle(r.Context())
		resp := CycleResponse{Summary: summary}
		if summary != nil {
			resp.EventsProcessed = summary.EventsProcessed()
			resp.Events = summary.Events
		}

		code := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			switch {
			case errors.Is(err, pipeline.ErrFatal):
				code = http.StatusServiceUnavailable
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				code = http.StatusRequestTimeout
			default:
				code = http.StatusInternalServerError
			}
		}
		writeJSON(w, code, resp)
	}
}

// archivedCyclesHandler serves the archived summaries of one UTC day (YYYY-MM-DD)
func archivedCyclesHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := time.Parse(time.DateOnly, mux.Vars(r)["day"])
		if err != nil {
			writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
			return
		}

		cycles, err := p.ArchivedCycles(r.Context(), day)
		if err != nil {
			if errors.Is(err, pipeline.ErrNoArchive) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			logrus.Errorf("Failed to read archived cycles for %s: %v", day.Format(time.DateOnly), err)
			writeError(w, http.StatusServiceUnavailable, "cycle archive unavailable")
			return
		}
		writeJSON(w, http.StatusOK, cycles)
	}
}

func fetchHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group := mux.Vars(r)["group"]

		items, err := p.RunFetchOnly(r.Context(), group)
		if err != nil {
			if errors.Is(err, pipeline.ErrUnknownGroup) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusRequestTimeout, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func analyzeHandler(p Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		candidates, err := p.RunAnalyzeOnly(r.Context(), req.Items)
		if err != nil {
			writeError(w, http.StatusRequestTimeout, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, candidates)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Error: message})
}
