package store

import (
	"context"
	"net/http"
	"sync"

	apperrors "licensegate/internal/errors"
)

// Memory is an in-memory Store used as the test double. It keeps the same
// compare-and-swap semantics as the Postgres implementation so concurrency
// tests exercise the real conflict path. Not a production fallback.
type Memory struct {
	mu       sync.Mutex
	licenses map[string]string // key -> encoded machine list
	records  map[string]*LicenseRecord
	logs     []VerifyLogEntry

	// Error injection for failure-isolation tests.
	FindErr   error
	UpdateErr error
	LogErr    error
	PingErr   error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		licenses: make(map[string]string),
		records:  make(map[string]*LicenseRecord),
	}
}

// Put seeds or replaces a license record.
func (m *Memory) Put(record *LicenseRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *record
	clone.Machines = append([]string(nil), record.Machines...)
	encoded, _ := EncodeMachineList(clone.Machines)
	m.records[record.LicenseKey] = &clone
	m.licenses[record.LicenseKey] = encoded
}

// FindLicense implements Store.
func (m *Memory) FindLicense(ctx context.Context, licenseKey string) (*LicenseRecord, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInfrastructure, http.StatusInternalServerError, "storage unavailable", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[licenseKey]
	if !ok {
		return nil, apperrors.ErrLicenseNotFound
	}
	clone := *rec
	clone.Machines = DecodeMachineList(m.licenses[licenseKey])
	return &clone, nil
}

// UpdateBinding implements Store with optimistic concurrency on the encoded
// machine list.
func (m *Memory) UpdateBinding(ctx context.Context, licenseKey string, prev, next []string, activatedAt *int64) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	prevEncoded, err := EncodeMachineList(prev)
	if err != nil {
		return err
	}
	nextEncoded, err := EncodeMachineList(next)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[licenseKey]
	if !ok {
		return apperrors.ErrLicenseNotFound
	}
	if m.licenses[licenseKey] != prevEncoded {
		return apperrors.ErrBindingConflict
	}
	m.licenses[licenseKey] = nextEncoded
	rec.Machines = DecodeMachineList(nextEncoded)
	if activatedAt != nil {
		stamp := *activatedAt
		rec.ActivatedAt = &stamp
	}
	return nil
}

// AppendVerifyLog implements Store.
func (m *Memory) AppendVerifyLog(ctx context.Context, entry *VerifyLogEntry) error {
	if m.LogErr != nil {
		return m.LogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, *entry)
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	return m.PingErr
}

// Logs returns a copy of the appended audit entries.
func (m *Memory) Logs() []VerifyLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VerifyLogEntry(nil), m.logs...)
}
