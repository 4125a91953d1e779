// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/waveroom/internal/model"
	"github.com/alfredjeanlab/waveroom/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, msg *model.Message) error {
	return queryCreateMessage(ctx, s.db, msg)
}

func (s *PostgresStore) ListMessages(ctx context.Context, limit int) ([]*model.Message, error) {
	return queryListMessages(ctx, s.db, limit)
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *model.Request) error {
	return queryCreateRequest(ctx, s.db, req)
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	return queryGetRequest(ctx, s.db, id)
}

func (s *PostgresStore) ListRequests(ctx context.Context, horizon time.Time) ([]*model.Request, error) {
	return queryListRequests(ctx, s.db, horizon)
}

func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus, playedAt *time.Time) (*model.Request, error) {
	return queryUpdateRequestStatus(ctx, s.db, id, status, playedAt)
}

func (s *PostgresStore) CreateVote(ctx context.Context, vote *model.Vote) error {
	return queryCreateVote(ctx, s.db, vote)
}

func (s *PostgresStore) DeleteVote(ctx context.Context, requestID, voterKey string) error {
	return queryDeleteVote(ctx, s.db, requestID, voterKey)
}

func (s *PostgresStore) CountVotes(ctx context.Context, requestID string) (int, error) {
	return queryCountVotes(ctx, s.db, requestID)
}

func (s *PostgresStore) VotedRequestIDs(ctx context.Context, voterKey string) ([]string, error) {
	return queryVotedRequestIDs(ctx, s.db, voterKey)
}

func (s *PostgresStore) ListHistory(ctx context.Context, limit int) ([]*model.HistoryEntry, error) {
	return queryListHistory(ctx, s.db, limit)
}
