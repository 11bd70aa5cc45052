package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/dataset"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/refdata"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/sar"
	"github.com/opensource-finance/kestrel/internal/violations"
)

// maxUploadBytes bounds uploaded CSV size.
const maxUploadBytes = 64 << 20

// Handler holds dependencies for API handlers.
type Handler struct {
	store     *dataset.Store
	registry  *rules.Registry
	evaluator *rules.Evaluator
	refs      *refdata.Provider
	cache     domain.Cache
	bus       domain.EventBus
	narrator  *sar.Narrator
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(store *dataset.Store, registry *rules.Registry, evaluator *rules.Evaluator, refs *refdata.Provider, cache domain.Cache, bus domain.EventBus, narrator *sar.Narrator, version string) *Handler {
	return &Handler{
		store:     store,
		registry:  registry,
		evaluator: evaluator,
		refs:      refs,
		cache:     cache,
		bus:       bus,
		narrator:  narrator,
		version:   version,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// UploadDatasetResponse is the response for POST /datasets.
type UploadDatasetResponse struct {
	DatasetID string `json:"datasetId"`
	Rows      int    `json:"rows"`
	Customers int    `json:"customers"`
}

// UploadDataset handles POST /datasets: the request body is the raw
// transaction CSV. A malformed upload is the caller's problem (400 with
// the parse error), never a server crash.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	txs, err := dataset.Parse(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		slog.Warn("dataset upload rejected", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if len(txs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "no data available: CSV contained no transactions",
		})
		return
	}

	ds := &domain.Dataset{
		ID:           uuid.New().String(),
		Name:         r.URL.Query().Get("name"),
		Transactions: txs,
		UploadedAt:   time.Now().UTC(),
	}

	if err := h.store.Put(ds); err != nil {
		slog.Error("failed to store dataset", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to store dataset",
		})
		return
	}

	summary := dataset.Summarize(ds)
	slog.Info("dataset uploaded",
		"dataset_id", ds.ID,
		"rows", summary.Rows,
		"customers", summary.Customers,
	)

	writeJSON(w, http.StatusCreated, UploadDatasetResponse{
		DatasetID: ds.ID,
		Rows:      summary.Rows,
		Customers: summary.Customers,
	})
}

// GetDataset returns a dataset summary.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, dataset.Summarize(ds))
}

// DeleteDataset removes a dataset from the session store.
func (h *Handler) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	h.store.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// GetCustomerSummary returns one customer's activity summary.
func (h *Handler) GetCustomerSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	summary, ok := dataset.SummarizeCustomer(ds, chi.URLParam(r, "customerID"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "customer not found in dataset",
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ScreenRequest is the request body for POST /datasets/{id}/screen.
type ScreenRequest struct {
	// Rules is the selection of rule names; empty means all registered.
	// Unknown names are skipped, not rejected.
	Rules []string `json:"rules,omitempty"`

	// CustomerID optionally scopes the screening to one customer.
	CustomerID string `json:"customerId,omitempty"`

	// MinViolations filters the violation view; defaults to 2.
	MinViolations int `json:"minViolations,omitempty"`

	// Pagination over the filtered violation view.
	Page     int `json:"page,omitempty"`
	PageSize int `json:"pageSize,omitempty"`
}

// ScreenResponse is the response for POST /datasets/{id}/screen.
type ScreenResponse struct {
	DatasetID  string                          `json:"datasetId"`
	Rules      []string                        `json:"rules"`
	Results    map[string][]domain.Transaction `json:"results"`
	Violations []violations.Entry              `json:"violations"`
	Pagination PageInfo                        `json:"pagination"`
}

// PageInfo describes the violation view page in a screening response.
type PageInfo struct {
	Page           int `json:"page"`
	PageSize       int `json:"pageSize"`
	TotalPages     int `json:"totalPages"`
	TotalCustomers int `json:"totalCustomers"`
}

// Screen handles POST /datasets/{id}/screen: runs the selected rules,
// aggregates per-customer violations, and returns one stable page of the
// filtered violation view.
func (h *Handler) Screen(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	var req ScreenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	if req.MinViolations <= 0 {
		req.MinViolations = violations.DefaultMinViolations
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 10
	}

	results := h.evaluator.Evaluate(ds.Transactions, req.Rules, req.CustomerID)
	flagged := violations.Aggregate(results).FilterMin(req.MinViolations)

	resp := ScreenResponse{
		DatasetID:  ds.ID,
		Rules:      make([]string, 0, len(results)),
		Results:    domain.ResultTables(results),
		Violations: flagged.Page(req.Page, req.PageSize),
		Pagination: PageInfo{
			Page:           req.Page,
			PageSize:       req.PageSize,
			TotalPages:     flagged.PageCount(req.PageSize),
			TotalCustomers: flagged.Len(),
		},
	}
	for _, res := range results {
		resp.Rules = append(resp.Rules, res.Rule)
	}

	h.publishScreeningEvents(ds.ID, req.CustomerID, results, flagged)

	writeJSON(w, http.StatusOK, resp)
}

// publishScreeningEvents emits advisory bus events for a completed run.
// Publish failures are logged and otherwise ignored.
func (h *Handler) publishScreeningEvents(datasetID, customerID string, results []domain.RuleResult, flagged *violations.Map) {
	if h.bus == nil {
		return
	}

	// Events carry their own context: the request context ends with the
	// response, subscribers should still see the event.
	ctx := contextForEvents()

	completed := domain.ScreeningCompletedEvent{
		DatasetID:        datasetID,
		CustomerID:       customerID,
		FlaggedPerRule:   make(map[string]int, len(results)),
		FlaggedCustomers: flagged.Len(),
	}
	for _, res := range results {
		completed.Rules = append(completed.Rules, res.Rule)
		completed.FlaggedPerRule[res.Rule] = len(res.Transactions)
	}

	if payload, err := json.Marshal(completed); err == nil {
		if err := h.bus.Publish(ctx, domain.TopicScreeningCompleted, payload); err != nil {
			slog.Warn("failed to publish screening event", "error", err)
		}
	}

	for _, customer := range flagged.Customers() {
		alert := domain.CustomerAlertEvent{
			DatasetID:  datasetID,
			CustomerID: customer,
			Rules:      flagged.Rules(customer),
		}
		if payload, err := json.Marshal(alert); err == nil {
			if err := h.bus.Publish(ctx, domain.TopicCustomerAlert, payload); err != nil {
				slog.Warn("failed to publish customer alert",
					"customer_id", customer,
					"error", err,
				)
			}
		}
	}
}

// ListRules returns the registered rule names in registration order.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": names,
		"count": len(names),
	})
}

// CreateRuleRequest is the request body for creating an expression rule.
type CreateRuleRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// CreateRule registers an operator-defined CEL expression rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "name and expression are required",
		})
		return
	}

	rule, err := rules.NewExpressionRule(req.Name, req.Expression)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.registry.Register(rule); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("expression rule registered", "rule", req.Name)
	writeJSON(w, http.StatusCreated, map[string]string{
		"name":       rule.Name(),
		"expression": rule.Expression(),
	})
}

// RefDataResponse describes the active reference data snapshot.
type RefDataResponse struct {
	Countries int       `json:"countries"`
	Keywords  int       `json:"keywords"`
	LoadedAt  time.Time `json:"loadedAt"`
}

// GetRefData returns the active snapshot's list sizes.
func (h *Handler) GetRefData(w http.ResponseWriter, r *http.Request) {
	ref := h.refs.Current()
	writeJSON(w, http.StatusOK, RefDataResponse{
		Countries: ref.CountryCount(),
		Keywords:  ref.KeywordCount(),
		LoadedAt:  ref.LoadedAt(),
	})
}

// ReloadRefData swaps in a fresh reference data snapshot. Unreadable
// source files degrade to empty lists; the response reports whatever was
// loaded.
func (h *Handler) ReloadRefData(w http.ResponseWriter, r *http.Request) {
	ref := h.refs.Load()

	if h.bus != nil {
		payload, _ := json.Marshal(RefDataResponse{
			Countries: ref.CountryCount(),
			Keywords:  ref.KeywordCount(),
			LoadedAt:  ref.LoadedAt(),
		})
		if err := h.bus.Publish(contextForEvents(), domain.TopicRefDataReloaded, payload); err != nil {
			slog.Warn("failed to publish refdata event", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, RefDataResponse{
		Countries: ref.CountryCount(),
		Keywords:  ref.KeywordCount(),
		LoadedAt:  ref.LoadedAt(),
	})
}

// SARResponse is the response for a SAR generation request.
type SARResponse struct {
	CustomerID string   `json:"customerId"`
	Violations []string `json:"violations"`
	Narrative  string   `json:"narrative"`
}

// GenerateSAR handles POST /datasets/{id}/customers/{customerID}/sar:
// screens the customer against every registered rule, aggregates their
// violations, and asks the external narrator for the report text.
// Narrator failures come back as an error message; the screening results
// that fed the prompt are unaffected.
func (h *Handler) GenerateSAR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := chi.URLParam(r, "customerID")

	ds, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	results := h.evaluator.Evaluate(ds.Transactions, nil, customerID)
	violated := violations.Aggregate(results).Rules(customerID)
	if len(violated) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "customer has no rule violations in this dataset",
		})
		return
	}

	var customerTxs []domain.Transaction
	for _, tx := range ds.Transactions {
		if tx.CustomerID == customerID {
			customerTxs = append(customerTxs, tx)
		}
	}

	narrative, err := h.narrator.Generate(ctx, ds.ID, customerID, violated, customerTxs)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, sar.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		slog.Error("sar narrative generation failed",
			"customer_id", customerID,
			"error", err,
		)
		writeJSON(w, status, map[string]string{
			"error": "error generating SAR narrative: " + err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, SARResponse{
		CustomerID: customerID,
		Violations: violated,
		Narrative:  narrative,
	})
}

// contextForEvents returns the context used for advisory bus publishes,
// detached from the request so events outlive the response.
func contextForEvents() context.Context {
	return context.Background()
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
