package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "licensegate/internal/errors"
	"licensegate/internal/infrastructure"
	"licensegate/internal/middleware"
	"licensegate/internal/store"
	"licensegate/internal/verify"
	"licensegate/pkg/contracts/domain"
)

// VerifyHandler adapts HTTP requests onto the verification engine and
// applies the mutations an accepting verdict stages.
type VerifyHandler struct {
	engine       *verify.Engine
	store        store.Store
	validate     *validator.Validate
	metrics      *infrastructure.Metrics
	logger       *slog.Logger
	storeTimeout time.Duration

	// now is injectable for boundary tests.
	now func() int64
}

// NewVerifyHandler creates the handler.
func NewVerifyHandler(engine *verify.Engine, st store.Store, metrics *infrastructure.Metrics, logger *slog.Logger, storeTimeout time.Duration) *VerifyHandler {
	return &VerifyHandler{
		engine:       engine,
		store:        st,
		validate:     validator.New(),
		metrics:      metrics,
		logger:       logger.With(slog.String("handler", "verify")),
		storeTimeout: storeTimeout,
		now:          func() int64 { return time.Now().Unix() },
	}
}

// Verify handles POST /verify.
func (h *VerifyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)
	tracer := otel.Tracer("verify-handler")

	ctx, span := tracer.Start(ctx, "verify_handler.verify",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/verify"),
			attribute.String("request_id", reqID),
		),
	)
	defer span.End()

	var payload domain.VerifyRequest
	if err := render.DecodeJSON(r.Body, &payload); err != nil {
		span.RecordError(err)
		h.logger.WarnContext(ctx, "malformed request body",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()))
		h.observe(start, "malformed")
		writeVerdict(w, r, domain.VerifyResponse{Valid: false, Message: "malformed request"}, http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(&payload); err != nil {
		span.SetAttributes(attribute.String("error.type", "request_validation"))
		h.respond(w, r, start, verify.Verdict{
			Valid:   false,
			Status:  http.StatusBadRequest,
			Message: "incomplete parameters",
			Kind:    apperrors.KindClientInput,
		})
		return
	}

	req := verify.Request{
		LicenseKey: payload.LicenseKey,
		MachineID:  payload.MachineID,
		Timestamp:  payload.Timestamp,
		Signature:  payload.Signature,
		IPAddress:  middleware.ClientIP(r),
	}

	verdict := h.decide(ctx, req)

	span.SetAttributes(
		attribute.Bool("verify.valid", verdict.Valid),
		attribute.Int("http.status_code", verdict.Status),
		attribute.String("verify.outcome", verdict.Outcome()),
	)

	h.respond(w, r, start, verdict)
}

// decide runs the engine and applies staged mutations. A lost binding race
// re-evaluates once against fresh state; the loser of a second race fails
// closed.
func (h *VerifyHandler) decide(ctx context.Context, req verify.Request) verify.Verdict {
	for attempt := 0; ; attempt++ {
		verdict, muts := h.engine.Evaluate(ctx, req, h.now())
		if !verdict.Valid || muts == nil {
			return verdict
		}

		if muts.Binding != nil {
			b := muts.Binding
			err := h.store.UpdateBinding(ctx, b.LicenseKey, b.Previous, b.Machines, b.ActivatedAt)
			if errors.Is(err, apperrors.ErrBindingConflict) {
				h.metrics.BindingConflicts.Inc()
				if attempt == 0 {
					continue
				}
				err = apperrors.ErrStoreUnavailable
			}
			if err != nil {
				h.logger.ErrorContext(ctx, "binding update failed",
					slog.String("license_key", req.LicenseKey),
					slog.String("error", err.Error()))
				return verify.Verdict{
					Valid:   false,
					Status:  apperrors.StatusOf(err),
					Message: apperrors.PublicMessage(err),
					Kind:    apperrors.KindOf(err),
				}
			}
		}

		if muts.Log != nil {
			h.appendLog(muts.Log)
		}
		return verdict
	}
}

// appendLog writes the audit entry fire-and-forget: a detached bounded
// context, errors logged and swallowed, the verdict untouched.
func (h *VerifyHandler) appendLog(entry *store.VerifyLogEntry) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.storeTimeout)
		defer cancel()
		if err := h.store.AppendVerifyLog(ctx, entry); err != nil {
			h.metrics.AuditLogFailures.Inc()
			h.logger.Warn("audit log append failed",
				slog.String("license_key", entry.LicenseKey),
				slog.String("error", err.Error()))
		}
	}()
}

func (h *VerifyHandler) respond(w http.ResponseWriter, r *http.Request, start time.Time, verdict verify.Verdict) {
	h.observe(start, verdict.Outcome())

	resp := domain.VerifyResponse{Valid: verdict.Valid, Message: verdict.Message}
	if verdict.Valid {
		expireTime := verdict.ExpireTime
		daysRemaining := verdict.DaysRemaining
		resp.ExpireTime = &expireTime
		resp.DaysRemaining = &daysRemaining
	}
	writeVerdict(w, r, resp, verdict.Status)
}

func (h *VerifyHandler) observe(start time.Time, outcome string) {
	h.metrics.VerifyTotal.WithLabelValues(outcome).Inc()
	h.metrics.VerifyDuration.Observe(time.Since(start).Seconds())
}

func writeVerdict(w http.ResponseWriter, r *http.Request, resp domain.VerifyResponse, status int) {
	render.Status(r, status)
	render.JSON(w, r, resp)
}
