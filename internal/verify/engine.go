// Package verify implements the verification engine: a pure decision
// procedure over an incoming request and a fetched license record. Checks
// run in a fixed order and each failure is terminal; an accepting verdict
// comes with the set of mutations the caller must apply.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "licensegate/internal/errors"
	"licensegate/internal/store"
)

// DefaultReplayWindow bounds clock skew and the reuse window of a captured
// signature.
const DefaultReplayWindow = 300 * time.Second

const secondsPerDay = 86400

// Request is the parsed verification request. Transient, never persisted.
type Request struct {
	LicenseKey string
	MachineID  string
	Timestamp  int64
	Signature  string
	// IPAddress is carried into the audit log only.
	IPAddress string
}

// Engine evaluates verification requests. It reads license records through
// the finder and never writes; writes are staged as Mutations.
type Engine struct {
	secret []byte
	window time.Duration
	finder store.LicenseFinder
	logger *slog.Logger
}

// NewEngine creates an engine with the shared HMAC secret. A zero window
// falls back to DefaultReplayWindow.
func NewEngine(secret string, window time.Duration, finder store.LicenseFinder, logger *slog.Logger) *Engine {
	if window <= 0 {
		window = DefaultReplayWindow
	}
	return &Engine{
		secret: []byte(secret),
		window: window,
		finder: finder,
		logger: logger.With(slog.String("component", "verify-engine")),
	}
}

// Evaluate runs the ordered protocol checks against the request at the given
// evaluation time. Mutations is nil on every rejecting verdict.
func (e *Engine) Evaluate(ctx context.Context, req Request, now int64) (Verdict, *Mutations) {
	licenseKey := strings.TrimSpace(req.LicenseKey)
	machineID := strings.TrimSpace(req.MachineID)
	signature := strings.TrimSpace(req.Signature)

	// 1. Shape.
	if licenseKey == "" || machineID == "" || signature == "" {
		return reject(apperrors.KindClientInput, http.StatusBadRequest, "incomplete parameters"), nil
	}
	if !store.ValidMachineID(machineID) {
		return reject(apperrors.KindClientInput, http.StatusBadRequest, "invalid machine id"), nil
	}

	// 2. Replay window, inclusive boundary.
	skew := now - req.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(e.window/time.Second) {
		return reject(apperrors.KindAuth, http.StatusBadRequest,
			fmt.Sprintf("invalid request time (skew %ds)", skew)), nil
	}

	// 3. Signature.
	if !ValidSignature(e.secret, licenseKey, machineID, req.Timestamp, signature) {
		e.logger.WarnContext(ctx, "signature verification failed",
			slog.String("license_key", maskKey(licenseKey)),
			slog.String("machine_id", maskKey(machineID)))
		return reject(apperrors.KindAuth, http.StatusForbidden, "signature verification failed"), nil
	}

	// 4. Record lookup.
	record, err := e.finder.FindLicense(ctx, licenseKey)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInfrastructure {
			e.logger.ErrorContext(ctx, "license lookup failed",
				slog.String("license_key", maskKey(licenseKey)),
				slog.String("error", err.Error()))
		}
		return rejectErr(err), nil
	}

	// 5. Active flag.
	if !record.IsActive {
		return reject(apperrors.KindPolicy, http.StatusForbidden, "license disabled"), nil
	}

	// 6. Expiry: now == expireTime still passes.
	if now > record.ExpireTime {
		expiredOn := time.Unix(record.ExpireTime, 0).UTC().Format("2006-01-02")
		return reject(apperrors.KindPolicy, http.StatusForbidden,
			fmt.Sprintf("license expired on %s", expiredOn)), nil
	}

	// 7. Device binding.
	binding, verdict := e.bindMachine(record, machineID, now)
	if verdict != nil {
		return *verdict, nil
	}

	// 8-9. Accept: stage the audit entry and compute the remaining days.
	days := (record.ExpireTime - now) / secondsPerDay
	if days < 0 {
		days = 0
	}

	muts := &Mutations{
		Binding: binding,
		Log: &store.VerifyLogEntry{
			LicenseKey: licenseKey,
			MachineID:  machineID,
			VerifyTime: now,
			IPAddress:  req.IPAddress,
		},
	}

	return Verdict{
		Valid:         true,
		Status:        http.StatusOK,
		Message:       "verification successful",
		ExpireTime:    record.ExpireTime,
		DaysRemaining: days,
	}, muts
}

// bindMachine decides the device-binding branch: first activation, already
// bound, append, or quota rejection. The quota check runs before any mutation
// is staged so the bound set can never outgrow MaxDevices here.
func (e *Engine) bindMachine(record *store.LicenseRecord, machineID string, now int64) (*BindingUpdate, *Verdict) {
	switch {
	case len(record.Machines) == 0:
		activatedAt := now
		return &BindingUpdate{
			LicenseKey:  record.LicenseKey,
			Previous:    nil,
			Machines:    []string{machineID},
			ActivatedAt: &activatedAt,
		}, nil

	case record.Bound(machineID):
		return nil, nil

	case len(record.Machines) >= record.MaxDevices:
		v := reject(apperrors.KindPolicy, http.StatusForbidden,
			fmt.Sprintf("license already bound to %d devices (limit %d)", len(record.Machines), record.MaxDevices))
		return nil, &v

	default:
		next := make([]string, 0, len(record.Machines)+1)
		next = append(next, record.Machines...)
		next = append(next, machineID)
		return &BindingUpdate{
			LicenseKey: record.LicenseKey,
			Previous:   record.Machines,
			Machines:   next,
		}, nil
	}
}

// maskKey shortens identifiers for logging.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
