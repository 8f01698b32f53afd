// Copyright 2025 Certen Protocol
//
// HTTP handlers for the reputation service, grounded on
// original_source/apps/reputation_service/api.py.

package reputation

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/agentcourt/pkg/escrow"
)

// Handlers provides the HTTP surface over a Store.
type Handlers struct {
	store  *Store
	escrow escrow.Backend
	logger *log.Logger
}

// NewHandlers creates reputation HTTP handlers.
func NewHandlers(store *Store, backend escrow.Backend, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[ReputationAPI] ", log.LstdFlags)
	}
	return &Handlers{store: store, escrow: backend, logger: logger}
}

// Router builds the httprouter.Router for this service.
func (h *Handlers) Router() *httprouter.Router {
	r := httprouter.New()
	r.GET("/reputation", h.list)
	r.GET("/reputation/:actorId", h.get)
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

func (h *Handlers) get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rep, err := h.store.GetReputation(r.Context(), ps.ByName("actorId"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	items, err := h.store.ListReputations(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sanity, err := h.escrow.ContractSanity(r.Context())
	status := "ok"
	if err != nil || (!sanity.CodeAtAddress && !sanity.DryRun) {
		status = "degraded"
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "escrow": sanity})
}
