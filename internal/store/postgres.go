package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	apperrors "licensegate/internal/errors"
	"licensegate/internal/store/migrations"
)

// Postgres is the production Store backed by the licenses database.
// Construct once at startup and share across requests.
type Postgres struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostgres opens the database described by dsn and brings the schema up
// to date. An empty dsn returns errors.ErrStoreNotConfigured so callers can
// tell missing credentials from a connection failure.
func NewPostgres(dsn string, timeout time.Duration, logger *slog.Logger) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, apperrors.ErrStoreNotConfigured
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	p := &Postgres{
		db:      db,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "store")),
	}

	if err := p.runMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return p, nil
}

func (p *Postgres) runMigrations(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.UpContext(ctx, p.db, "."); err != nil {
		return err
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// FindLicense implements Store.
func (p *Postgres) FindLicense(ctx context.Context, licenseKey string) (*LicenseRecord, error) {
	query := `
		SELECT license_key, is_active, expire_time, COALESCE(machine_id, ''), max_devices, activated_at
		FROM licenses
		WHERE license_key = $1`

	var (
		rec         LicenseRecord
		encoded     string
		activatedAt sql.NullInt64
	)
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.db.QueryRowContext(ctx, query, licenseKey).
			Scan(&rec.LicenseKey, &rec.IsActive, &rec.ExpireTime, &encoded, &rec.MaxDevices, &activatedAt)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrLicenseNotFound
		}
		return nil, p.infraError("license lookup failed", err)
	}

	rec.Machines = DecodeMachineList(encoded)
	if activatedAt.Valid {
		stamp := activatedAt.Int64
		rec.ActivatedAt = &stamp
	}
	return &rec, nil
}

// UpdateBinding implements Store. The WHERE clause compares the stored
// machine list against the snapshot the decision was made from, so two racing
// activations cannot both land; the loser gets errors.ErrBindingConflict.
func (p *Postgres) UpdateBinding(ctx context.Context, licenseKey string, prev, next []string, activatedAt *int64) error {
	prevEncoded, err := EncodeMachineList(prev)
	if err != nil {
		return err
	}
	nextEncoded, err := EncodeMachineList(next)
	if err != nil {
		return err
	}

	query := `
		UPDATE licenses
		SET machine_id = $2, activated_at = COALESCE($3, activated_at)
		WHERE license_key = $1 AND COALESCE(machine_id, '') = $4`

	var affected int64
	err = p.withRetry(ctx, func(ctx context.Context) error {
		res, execErr := p.db.ExecContext(ctx, query, licenseKey, nextEncoded, activatedAtArg(activatedAt), prevEncoded)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return p.infraError("binding update failed", err)
	}
	if affected == 0 {
		return apperrors.ErrBindingConflict
	}
	return nil
}

// AppendVerifyLog implements Store. Failures surface to the caller, which
// swallows them; the verdict is already decided by then.
func (p *Postgres) AppendVerifyLog(ctx context.Context, entry *VerifyLogEntry) error {
	query := `
		INSERT INTO verify_logs (license_key, machine_id, verify_time, ip_address)
		VALUES ($1, $2, $3, $4)`

	err := p.withRetry(ctx, func(ctx context.Context) error {
		_, execErr := p.db.ExecContext(ctx, query, entry.LicenseKey, entry.MachineID, entry.VerifyTime, entry.IPAddress)
		return execErr
	})
	if err != nil {
		return p.infraError("verify log append failed", err)
	}
	return nil
}

// Ping implements Store.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

// withRetry bounds the call with the store timeout and retries once with
// constant backoff on transient failures before failing closed.
func (p *Postgres) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	backoff := retry.WithMaxRetries(1, retry.NewConstant(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			p.logger.Warn("transient store error, retrying", slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (p *Postgres) infraError(msg string, err error) error {
	p.logger.Error(msg, slog.String("error", err.Error()))
	return apperrors.Wrap(apperrors.KindInfrastructure, http.StatusInternalServerError, "storage unavailable", err)
}

// isTransient reports whether a failure is worth one more attempt. Context
// expiry is not: the request deadline already passed.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func activatedAtArg(activatedAt *int64) interface{} {
	if activatedAt == nil {
		return nil
	}
	return *activatedAt
}
