package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wolfman30/callcrm-ai-platform/internal/archive"
	"github.com/wolfman30/callcrm-ai-platform/internal/events"
	"github.com/wolfman30/callcrm-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/callcrm-ai-platform/pkg/logging"
)

const (
	maxBodyBytes          = 2 << 20
	defaultProcessTimeout = 30 * time.Second
	rawLogLimit           = 512
)

// RawArchiver persists accepted payloads for replay.
type RawArchiver interface {
	Archive(ctx context.Context, eventID string, receivedAt time.Time, body []byte) error
}

// Handler accepts provider webhooks, acknowledges them immediately and applies the
// normalized action in the background.
type Handler struct {
	secret         string
	dedup          events.Deduplicator
	reconciler     CallReconciler
	archive        RawArchiver
	metrics        *metrics.WebhookMetrics
	stats          *Stats
	logger         *logging.Logger
	now            func() time.Time
	processTimeout time.Duration

	modelConfigured bool
	queueBackend    string

	wg sync.WaitGroup
}

// Option customizes the handler.
type Option func(*Handler)

func WithArchive(a RawArchiver) Option {
	return func(h *Handler) { h.archive = a }
}

func WithMetrics(m *metrics.WebhookMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithProcessTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.processTimeout = d
		}
	}
}

// WithStatusFlags sets configuration flags reported by the status endpoint.
func WithStatusFlags(modelConfigured bool, queueBackend string) Option {
	return func(h *Handler) {
		h.modelConfigured = modelConfigured
		h.queueBackend = queueBackend
	}
}

func withClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(secret string, dedup events.Deduplicator, reconciler CallReconciler, logger *logging.Logger, opts ...Option) *Handler {
	if dedup == nil {
		panic("webhook: deduplicator cannot be nil")
	}
	if reconciler == nil {
		panic("webhook: reconciler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{
		secret:         strings.TrimSpace(secret),
		dedup:          dedup,
		reconciler:     reconciler,
		stats:          NewStats(),
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
		processTimeout: defaultProcessTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.secret == "" {
		h.logger.Warn("webhook signing secret not configured; signature verification disabled")
	}
	return h
}

// HandleWebhook serves POST /webhook.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	receivedAt := h.now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.stats.reject()
		h.metrics.ObserveEvent("unknown", "rejected")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := VerifySignature(h.secret, r.Header.Get(SignatureHeader), body); err != nil {
		h.stats.reject()
		h.metrics.ObserveEvent("unknown", "rejected")
		h.logger.Warn("webhook signature rejected", "error", err, "remote_addr", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	env, err := Normalize(body, receivedAt)
	if err != nil {
		h.stats.reject()
		h.metrics.ObserveEvent("unknown", "rejected")
		h.logger.Warn("webhook payload rejected", "error", err, "raw", truncate(body))
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	name := ActionName(env.Action)
	defer func() { h.metrics.ObserveLatency(name, time.Since(start).Seconds()) }()

	if u, ok := env.Action.(Unrecognized); ok {
		h.stats.unknown(receivedAt)
		h.metrics.ObserveEvent(name, "unrecognized")
		h.logger.Info("webhook event unrecognized, dropping",
			"event_id", env.EventID, "type", u.RawType, "reason", u.Reason, "call_id", env.CallID)
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	first, err := h.dedup.MarkSeen(r.Context(), env.EventID)
	if err != nil {
		// a dedup outage must not drop deliveries; the reconciler writes are idempotent
		h.logger.Error("webhook dedup check failed, processing anyway", "event_id", env.EventID, "error", err)
		first = true
	}
	if !first {
		h.stats.duplicate()
		h.metrics.ObserveEvent(name, "duplicate")
		h.logger.Info("duplicate webhook event ignored", "event_id", env.EventID, "call_id", env.CallID)
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "duplicate": true})
		return
	}

	h.stats.accepted(name, receivedAt)
	h.metrics.ObserveEvent(name, "accepted")

	h.wg.Add(1)
	go h.process(context.WithoutCancel(r.Context()), env)

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (h *Handler) process(parent context.Context, env Envelope) {
	defer h.wg.Done()
	ctx, cancel := context.WithTimeout(parent, h.processTimeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("webhook processing panicked", "event_id", env.EventID, "panic", rec, "raw", truncate(env.Raw))
		}
	}()

	if h.archive != nil {
		if err := h.archive.Archive(ctx, env.EventID, env.ReceivedAt, env.Raw); err != nil {
			h.logger.Warn("raw payload archive failed", "event_id", env.EventID, "error", err)
		}
	}

	if !Apply(ctx, h.reconciler, env) {
		return
	}
	h.logger.Debug("webhook event applied", "event_id", env.EventID, "action", ActionName(env.Action), "call_id", env.CallID)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		h.logger.Error("webhook processing timed out", "event_id", env.EventID, "call_id", env.CallID, "raw", truncate(env.Raw))
	}
}

// Wait blocks until in-flight background processing finishes.
func (h *Handler) Wait() {
	h.wg.Wait()
}

type statusResponse struct {
	StatsSnapshot
	SignatureSecretConfigured bool   `json:"signature_secret_configured"`
	ModelConfigured           bool   `json:"model_configured"`
	QueueBackend              string `json:"queue_backend"`
}

// HandleStatus serves GET /status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		StatsSnapshot:             h.stats.Snapshot(),
		SignatureSecretConfigured: h.secret != "",
		ModelConfigured:           h.modelConfigured,
		QueueBackend:              h.queueBackend,
	})
}

// Stats exposes the delivery counters.
func (h *Handler) Stats() *Stats {
	return h.stats
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// truncate returns a PII-scrubbed preview of raw for logging.
func truncate(raw []byte) string {
	if len(raw) <= rawLogLimit {
		return archive.ScrubPII(string(raw))
	}
	n := rawLogLimit
	for n > 0 && !utf8.RuneStart(raw[n]) {
		n--
	}
	return archive.ScrubPII(string(raw[:n])) + "..."
}
