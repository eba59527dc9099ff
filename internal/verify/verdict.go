package verify

import (
	apperrors "licensegate/internal/errors"
	"licensegate/internal/store"
)

// Verdict is the engine's terminal decision. Immutable once produced; the
// transport layer only serializes it.
type Verdict struct {
	Valid   bool
	Status  int
	Message string
	// Kind classifies rejections for logs and metrics. Zero on success.
	Kind apperrors.Kind
	// ExpireTime and DaysRemaining are only meaningful when Valid.
	ExpireTime    int64
	DaysRemaining int64
}

// Outcome returns the metric label for the verdict.
func (v Verdict) Outcome() string {
	if v.Valid {
		return "success"
	}
	return v.Kind.String()
}

// BindingUpdate stages a change to the bound-machine list. Previous carries
// the snapshot the decision was made from so the store can apply it
// compare-and-swap style.
type BindingUpdate struct {
	LicenseKey  string
	Previous    []string
	Machines    []string
	ActivatedAt *int64
}

// Mutations is the set of writes an accepting verdict requires. The engine
// never applies them itself; the caller does, keeping the engine pure and
// independently testable.
type Mutations struct {
	Binding *BindingUpdate
	Log     *store.VerifyLogEntry
}

func reject(kind apperrors.Kind, status int, message string) Verdict {
	return Verdict{Valid: false, Status: status, Message: message, Kind: kind}
}

// rejectErr turns a classified error into a verdict, keeping infrastructure
// detail out of the caller-facing message.
func rejectErr(err error) Verdict {
	return Verdict{
		Valid:   false,
		Status:  apperrors.StatusOf(err),
		Message: apperrors.PublicMessage(err),
		Kind:    apperrors.KindOf(err),
	}
}
