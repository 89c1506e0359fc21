package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/govguard/internal/bus"
	"github.com/opensource-finance/govguard/internal/cache"
	"github.com/opensource-finance/govguard/internal/domain"
	"github.com/opensource-finance/govguard/internal/explain"
	"github.com/opensource-finance/govguard/internal/history"
	"github.com/opensource-finance/govguard/internal/ingest"
	"github.com/opensource-finance/govguard/internal/scoring"
	"github.com/opensource-finance/govguard/internal/tally"
	"github.com/opensource-finance/govguard/internal/worker"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// maxBodyBytes caps request bodies read by the evaluate and payment handlers.
const maxBodyBytes = 1 << 20

// Deps are the collaborators wired into the API. Only Scorer is required.
type Deps struct {
	Scorer    *scoring.Scorer
	Enricher  *ingest.Enricher
	Explainer explain.Explainer
	Bus       domain.EventBus
	Tally     tally.Store
	Replayer  *cache.Replayer
	Cache     domain.Cache
	History   domain.HistoryStore
	Worker    *worker.Worker
	Version   string

	// Now supplies the default reference time. Defaults to time.Now.
	Now func() time.Time
}

// Handler holds dependencies for API handlers.
type Handler struct {
	scorer    *scoring.Scorer
	enricher  *ingest.Enricher
	explainer explain.Explainer
	bus       domain.EventBus
	tally     tally.Store
	replayer  *cache.Replayer
	cache     domain.Cache
	history   domain.HistoryStore
	worker    *worker.Worker
	version   string
	now       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		scorer:    deps.Scorer,
		enricher:  deps.Enricher,
		explainer: deps.Explainer,
		bus:       deps.Bus,
		tally:     deps.Tally,
		replayer:  deps.Replayer,
		cache:     deps.Cache,
		history:   deps.History,
		worker:    deps.Worker,
		version:   deps.Version,
		now:       now,
	}
}

// EvaluateResponse is the response body for POST /evaluate.
type EvaluateResponse struct {
	EvaluationID     string        `json:"evaluationId"`
	InvoiceID        string        `json:"invoiceId"`
	Status           domain.Status `json:"status"`
	Flags            []domain.Flag `json:"flags"`
	EstimatedSavings string        `json:"estimatedSavings"`
	ReferenceTime    time.Time     `json:"referenceTime"`
	Explanation      string        `json:"explanation,omitempty"`
	Metadata         ResponseMeta  `json:"metadata"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	TraceID string `json:"traceId"`
	TotalMs int64  `json:"totalMs"`
	Version string `json:"version"`
}

// evaluateOptions are the request fields that steer evaluation rather than
// describe the invoice.
type evaluateOptions struct {
	referenceTime time.Time
	explain       bool
}

// Evaluate scores one invoice document.
// Flow: Decode -> Enrich -> Score -> Explain -> Publish -> Respond
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
		return
	}

	inv, err := ingest.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "request body must be a JSON object",
		})
		return
	}

	opts, err := parseEvaluateOptions(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if opts.referenceTime.IsZero() {
		opts.referenceTime = h.now()
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key != "" && h.replayer != nil {
		cached, ok, err := h.replayer.Lookup(ctx, key)
		if err != nil {
			slog.Warn("replay lookup failed", "idempotency_key", key, "error", err)
		}
		if ok {
			w.Header().Set(ReplayedHeader, "true")
			writeRaw(w, http.StatusOK, cached)
			return
		}
	}

	inv = h.enricher.Enrich(ctx, inv, opts.referenceTime)
	d := h.score(ctx, inv, opts.referenceTime)

	resp := EvaluateResponse{
		EvaluationID:     uuid.New().String(),
		InvoiceID:        inv.InvoiceID,
		Status:           d.Status,
		Flags:            d.TriggeredFlags,
		EstimatedSavings: d.EstimatedSavings.StringFixed(2),
		ReferenceTime:    opts.referenceTime,
	}
	if resp.InvoiceID == "" {
		resp.InvoiceID = domain.UnknownInvoiceID
	}
	if resp.Flags == nil {
		resp.Flags = []domain.Flag{}
	}

	if opts.explain && h.explainer != nil {
		text, err := h.explainer.Explain(ctx, inv, d)
		if err != nil {
			slog.Warn("explanation failed", "invoice_id", resp.InvoiceID, "error", err)
		} else {
			resp.Explanation = text
		}
	}

	h.publish(ctx, bus.DecisionEvent{
		EventID:          resp.EvaluationID,
		InvoiceID:        resp.InvoiceID,
		Status:           d.Status,
		Flags:            d.TriggeredFlags,
		EstimatedSavings: d.EstimatedSavings,
		ReferenceTime:    opts.referenceTime,
	})

	resp.Metadata = ResponseMeta{
		TraceID: GetTraceID(ctx),
		TotalMs: time.Since(start).Milliseconds(),
		Version: h.version,
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to encode evaluation", "invoice_id", resp.InvoiceID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode response",
		})
		return
	}

	if key != "" && h.replayer != nil {
		if err := h.replayer.Remember(ctx, key, encoded); err != nil {
			slog.Warn("failed to remember response", "idempotency_key", key, "error", err)
		}
	}

	slog.Debug("invoice evaluated",
		"invoice_id", resp.InvoiceID,
		"status", d.Status,
		"flags", len(d.TriggeredFlags),
		"duration_ms", resp.Metadata.TotalMs,
	)

	writeRaw(w, http.StatusOK, encoded)
}

func (h *Handler) score(ctx context.Context, inv domain.InvoiceRecord, ref time.Time) domain.Decision {
	_, span := tracer.Start(ctx, "scoring.Evaluate")
	defer span.End()

	d := h.scorer.Evaluate(inv, ref)

	span.SetAttributes(
		attribute.String("invoice.id", inv.InvoiceID),
		attribute.String("decision.status", string(d.Status)),
		attribute.Int("decision.flags", len(d.TriggeredFlags)),
	)
	return d
}

// publish hands the decision to the bus. Without a bus the tally is fed
// directly so totals still move.
func (h *Handler) publish(ctx context.Context, e bus.DecisionEvent) {
	if h.bus != nil {
		if err := bus.PublishDecision(ctx, h.bus, e); err != nil {
			slog.Warn("failed to publish decision", "invoice_id", e.InvoiceID, "error", err)
		}
		return
	}
	if h.tally != nil {
		if err := h.tally.Record(ctx, e.Decision()); err != nil {
			slog.Warn("failed to record decision", "invoice_id", e.InvoiceID, "error", err)
		}
	}
}

// parseEvaluateOptions reads reference_time and explain from an already
// validated object body. A malformed reference_time is an error; a
// malformed explain reads as false.
func parseEvaluateOptions(body []byte) (evaluateOptions, error) {
	var fields struct {
		ReferenceTime json.RawMessage `json:"reference_time"`
		Explain       json.RawMessage `json:"explain"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return evaluateOptions{}, fmt.Errorf("invalid request body: %w", err)
	}

	var opts evaluateOptions
	if len(fields.ReferenceTime) > 0 && string(fields.ReferenceTime) != "null" {
		var s string
		if err := json.Unmarshal(fields.ReferenceTime, &s); err != nil {
			return evaluateOptions{}, errors.New("reference_time must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		}
		opts.referenceTime = ingest.ParseDate(s)
		if opts.referenceTime.IsZero() {
			return evaluateOptions{}, errors.New("reference_time must be an RFC 3339 timestamp or a YYYY-MM-DD date")
		}
	}
	if len(fields.Explain) > 0 {
		_ = json.Unmarshal(fields.Explain, &opts.explain)
	}
	return opts, nil
}

// StatsResponse is the response body for GET /stats.
type StatsResponse struct {
	Processed int64         `json:"processed"`
	Flagged   int64         `json:"flagged"`
	Savings   string        `json:"savings"`
	Rules     []string      `json:"rules"`
	Worker    *worker.Stats `json:"worker,omitempty"`
}

// Stats returns the running totals.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.tally == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "tally not available",
		})
		return
	}

	totals, err := h.tally.Snapshot(r.Context())
	if err != nil {
		slog.Error("failed to read tally", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to read totals",
		})
		return
	}

	resp := StatsResponse{
		Processed: totals.Processed,
		Flagged:   totals.Flagged,
		Savings:   totals.Savings.StringFixed(2),
	}
	for _, def := range h.scorer.Rules() {
		resp.Rules = append(resp.Rules, string(def.ID))
	}
	if h.worker != nil {
		stats := h.worker.GetStats()
		resp.Worker = &stats
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports the status of every configured backend.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func(context.Context) error) {
		if err := ping(ctx); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			components[name] = "unavailable"
			status = "degraded"
			return
		}
		components[name] = "ok"
	}

	if h.history != nil {
		check("history", h.history.Ping)
	}
	if h.cache != nil {
		check("cache", h.cache.Ping)
	}
	if h.bus != nil {
		check("bus", h.bus.Ping)
	}
	if h.tally != nil {
		check("tally", h.tally.Ping)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RecordPaymentRequest is the request body for POST /payments.
type RecordPaymentRequest struct {
	Vendor string          `json:"vendor"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt string          `json:"paidAt"`
}

// RecordPayment adds a settled payment to the vendor ledger.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history not available",
		})
		return
	}

	var req RecordPaymentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid request body: " + err.Error(),
		})
		return
	}

	paidAt := ingest.ParseDate(req.PaidAt)
	if paidAt.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "paidAt must be an RFC 3339 timestamp or a YYYY-MM-DD date",
		})
		return
	}

	p := &domain.Payment{
		Vendor: req.Vendor,
		Amount: req.Amount,
		PaidAt: paidAt,
	}
	if err := h.history.RecordPayment(r.Context(), p); err != nil {
		if errors.Is(err, history.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("failed to record payment", "vendor", req.Vendor, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to record payment",
		})
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// GetPayment retrieves a payment by ID.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "payment id is required",
		})
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history not available",
		})
		return
	}

	p, err := h.history.GetPayment(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "payment not found",
			})
			return
		}
		slog.Error("failed to get payment", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get payment",
		})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
