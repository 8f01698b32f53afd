// Copyright 2025 Certen Protocol
//
// HTTP handlers for the evidence service. Grounded on
// original_source/apps/evidence_service/routes.py's endpoint shapes;
// routed with httprouter since most endpoints carry a path parameter.

package evidence

import (
	"encoding/json"
	"errors"
	"io"
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

// NewHandlers creates evidence HTTP handlers.
func NewHandlers(service *Service, logger *log.Logger) *Handlers {
	if logger == nil {
		logger = log.New(log.Writer(), "[EvidenceAPI] ", log.LstdFlags)
	}
	return &Handlers{service: service, logger: logger}
}

// Router builds the httprouter.Router for this service.
func (h *Handlers) Router() *httprouter.Router {
	r := httprouter.New()
	r.POST("/clauses", h.createClause)
	r.GET("/clauses/:agreementId", h.getClause)
	r.POST("/receipts", h.postReceipt)
	r.GET("/receipts/:receiptId", h.getReceipt)
	r.GET("/receipts", h.listReceipts)
	r.POST("/anchor", h.anchor)
	r.GET("/anchors", h.getAnchor)
	r.GET("/anchors/by-root/:rootHash", h.getAnchorByRoot)
	r.GET("/agreements/:agreementId", h.getAgreementBundle)
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

// statusForErr maps service errors to HTTP status per the documented
// failure policy: validation errors -> 400, anchor missing receipts -> 404,
// evidence hash mismatches -> 400, all others -> 500.
func statusForErr(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEmptyAgreement):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrChainInvalid),
		errors.Is(err, ErrDuplicateAgreement),
		errors.Is(err, ErrDuplicateSequence):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) createClause(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	clause, err := h.service.CreateClause(r.Context(), raw)
	if err != nil {
		h.logger.Printf("create clause failed: %v", err)
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":         true,
		"clauseId":   clause.ClauseID,
		"clauseHash": clause.ClauseHash,
	})
}

func (h *Handlers) getClause(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	clause, err := h.service.Store.GetClauseByAgreement(r.Context(), ps.ByName("agreementId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, clause)
}

func (h *Handlers) postReceipt(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	receipt, err := h.service.PostReceipt(r.Context(), raw)
	if err != nil {
		h.logger.Printf("post receipt failed: %v", err)
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"ok":          true,
		"receiptId":   receipt.ReceiptID,
		"receiptHash": receipt.ReceiptHash,
	})
}

func (h *Handlers) getReceipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	receipt, err := h.service.Store.GetReceipt(r.Context(), ps.ByName("receiptId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handlers) listReceipts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	receipts, err := h.service.Store.ListReceipts(r.Context(), q.Get("agreementId"), q.Get("actorId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(receipts),
		"items": receipts,
	})
}

func (h *Handlers) anchor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	var req struct {
		AgreementID string `json:"agreementId"`
	}
	if err := json.Unmarshal(raw, &req); err != nil || req.AgreementID == "" {
		writeJSONError(w, "agreementId is required", http.StatusBadRequest)
		return
	}

	anchor, err := h.service.Anchor(r.Context(), req.AgreementID)
	if err != nil {
		h.logger.Printf("anchor failed: %v", err)
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusCreated, anchor)
}

func (h *Handlers) getAnchor(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	anchor, err := h.service.Store.GetAnchor(r.Context(), r.URL.Query().Get("agreementId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, anchor)
}

func (h *Handlers) getAnchorByRoot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	anchor, err := h.service.Store.GetAnchorByRoot(r.Context(), ps.ByName("rootHash"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, anchor)
}

func (h *Handlers) getAgreementBundle(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	bundle, err := h.service.GetAgreementBundle(r.Context(), ps.ByName("agreementId"))
	if err != nil {
		writeJSONError(w, err.Error(), statusForErr(err))
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := h.service.Health(r.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}
