package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/domain"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/core/ports"
	"github.com/visvikbharti/rna-lab-navigator-sub001/internal/observability/metrics"
)

type Config struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	querySvc ports.QueryService
	metrics  *metrics.PipelineMetrics
	cfg      Config
}

func NewRouter(querySvc ports.QueryService, pipelineMetrics *metrics.PipelineMetrics, cfg Config) *Router {
	return &Router{
		querySvc: querySvc,
		metrics:  pipelineMetrics,
		cfg:      cfg,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.handleQuery)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, rt.cfg.BackpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	handler = metricsMiddleware(handler, rt.metrics)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Query     string `json:"query"`
	DocType   string `json:"doc_type"`
	Profile   string `json:"profile"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

func (rt *Router) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	query, err := domain.NewQuery(req.Query, req.DocType, req.Profile, req.SessionID, req.Stream)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	if query.Stream {
		rt.streamQuery(w, r, query)
		return
	}

	answer, err := rt.querySvc.Answer(r.Context(), query)
	if err != nil {
		rt.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) streamQuery(w http.ResponseWriter, r *http.Request, query domain.Query) {
	events, err := rt.querySvc.AnswerStream(r.Context(), query)
	if err != nil {
		rt.writeQueryError(w, err)
		return
	}
	writeSSE(w, r, events)
}

func (rt *Router) writeQueryError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if rt.metrics != nil {
		if kind := degradedKind(err); kind != "" {
			rt.metrics.RecordDegraded(kind)
		}
	}
	writeJSON(w, status, map[string]string{"error": userFacingError(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
