package store

import (
	"context"

	apperrors "licensegate/internal/errors"
)

// Unconfigured is the Store installed when no credentials are present. The
// server still starts and answers; every protocol request fails closed with
// a distinct not-configured error instead of crashing.
type Unconfigured struct{}

// FindLicense implements Store.
func (Unconfigured) FindLicense(ctx context.Context, licenseKey string) (*LicenseRecord, error) {
	return nil, apperrors.ErrStoreNotConfigured
}

// UpdateBinding implements Store.
func (Unconfigured) UpdateBinding(ctx context.Context, licenseKey string, prev, next []string, activatedAt *int64) error {
	return apperrors.ErrStoreNotConfigured
}

// AppendVerifyLog implements Store.
func (Unconfigured) AppendVerifyLog(ctx context.Context, entry *VerifyLogEntry) error {
	return apperrors.ErrStoreNotConfigured
}

// Ping implements Store.
func (Unconfigured) Ping(ctx context.Context) error {
	return apperrors.ErrStoreNotConfigured
}
