// Copyright 2025 Certen Protocol
//
// HTTP handlers for the judge service. Routed with httprouter, matching
// the evidence service's endpoint style.

package judge

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers provides the HTTP surface over a Service.
type Handlers struct {
	service *Service
	logger  *log.Logger
}

// NewHandlers creates judge HTTP handlers.
func NewHandlers(service *Service, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[JudgeAPI] ", log.LstdFlags)
	}
	return &Handlers{service: service, logger: logger}
}

// Router builds the httprouter.Router for this service.
func (h *Handlers) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/verdicts", h.listVerdicts)
	r.GET("/verdicts/:disputeId", h.getVerdict)
	r.GET("/health", h.health)
	r.GET("/metrics", wrapPromHandler())
	return r
}

func wrapPromHandler() httprouter.Handle {
	inner := promhttp.Handler()
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		inner.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrEvidenceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) listVerdicts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	verdicts, err := h.service.Store.ListVerdicts(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(verdicts),
		"items": verdicts,
	})
}

func (h *Handlers) getVerdict(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	verdict, err := h.service.Store.GetVerdictByDispute(r.Context(), ps.ByName("disputeId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// HealthStatus reports the judge service's readiness.
type HealthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Watch  string `json:"watcher"`
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := "ok"
	storeStatus := "ok"
	if err := h.service.Store.Health(r.Context()); err != nil {
		status = "degraded"
		storeStatus = err.Error()
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthStatus{Status: status, Store: storeStatus, Watch: "unknown"})
}
