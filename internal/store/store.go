// Package store provides the record store consumed by the verification
// engine: license lookup, optimistic binding updates and best-effort audit
// log appends. The production implementation is PostgreSQL; an in-memory
// implementation backs the tests.
package store

import "context"

// LicenseRecord is a snapshot of a stored license. The engine only reads
// snapshots and proposes updates; it never mutates a record in place.
type LicenseRecord struct {
	LicenseKey  string
	IsActive    bool
	ExpireTime  int64
	Machines    []string
	MaxDevices  int
	ActivatedAt *int64
}

// Bound reports whether the machine id is already in the bound set.
func (r *LicenseRecord) Bound(machineID string) bool {
	for _, m := range r.Machines {
		if m == machineID {
			return true
		}
	}
	return false
}

// VerifyLogEntry is one append-only audit record. Append failures are
// swallowed by callers and never alter a verdict.
type VerifyLogEntry struct {
	LicenseKey string
	MachineID  string
	VerifyTime int64
	IPAddress  string
}

// LicenseFinder is the narrow read interface the engine depends on.
type LicenseFinder interface {
	// FindLicense returns the record for the key or errors.ErrLicenseNotFound.
	FindLicense(ctx context.Context, licenseKey string) (*LicenseRecord, error)
}

// Store is the full record-store contract.
type Store interface {
	LicenseFinder

	// UpdateBinding replaces the bound-machine list, compare-and-swap style:
	// the update only lands if the stored list still equals prev, otherwise
	// errors.ErrBindingConflict is returned. A non-nil activatedAt also
	// stamps first activation.
	UpdateBinding(ctx context.Context, licenseKey string, prev, next []string, activatedAt *int64) error

	// AppendVerifyLog appends an audit entry. Callers treat failure as
	// non-fatal.
	AppendVerifyLog(ctx context.Context, entry *VerifyLogEntry) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
