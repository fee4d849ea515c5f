package snapshot

import (
	"context"
	"embed"
	"errors"
	"fmt"

	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	selectSnapshot = `SELECT data FROM snapshots WHERE key = $1`
	upsertSnapshot = `INSERT INTO snapshots (key, data, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
)

// DB is the subset of pgxpool.Pool the storage uses.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// PgStorage keeps snapshots in the snapshots table as JSONB.
type PgStorage struct {
	db DB
}

func NewPgStorage(db DB) *PgStorage {
	return &PgStorage{db: db}
}

func (p *PgStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	if err := p.db.QueryRow(ctx, selectSnapshot, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sferrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to select snapshot: %w", err)
	}
	return data, nil
}

func (p *PgStorage) Put(ctx context.Context, key string, data []byte) error {
	if _, err := p.db.Exec(ctx, upsertSnapshot, key, data); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Migrate applies the embedded schema migrations to the database at url.
func Migrate(url string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
