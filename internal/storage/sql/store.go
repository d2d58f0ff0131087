package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/jaescalo/property-deployer/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run migrations
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================
// API Keys
// ============================================

func (s *Store) CreateAPIKey(ctx context.Context, key *domain.APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, created_at, last_used_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.CreatedAt, key.LastUsedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var key domain.APIKey
	err := s.db.GetContext(ctx, &key,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		 FROM api_keys WHERE key_hash = $1`, keyHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &key, err
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	var keys []*domain.APIKey
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, name, key_hash, key_prefix, created_at, last_used_at
		 FROM api_keys ORDER BY created_at`)
	return keys, err
}

func (s *Store) DeleteAPIKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CountAPIKeys(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM api_keys`)
	return count, err
}

// ============================================
// Deployments
// ============================================

const deploymentColumns = `id, property_name, property_id, current_version, new_version, version_notes,
	activate_staging, activate_production, status, staging_outcome, staging_error,
	production_outcome, production_error, api_responses, error, created_at, started_at, finished_at`

func (s *Store) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (`+deploymentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		dep.ID, dep.PropertyName, dep.PropertyID, dep.CurrentVersion, dep.NewVersion, dep.VersionNotes,
		dep.ActivateStaging, dep.ActivateProduction, dep.Status, dep.StagingOutcome, dep.StagingError,
		dep.ProductionOutcome, dep.ProductionError, dep.APIResponses, dep.Error,
		dep.CreatedAt, dep.StartedAt, dep.FinishedAt)
	return wrapUniqueError(err)
}

func (s *Store) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	var dep domain.Deployment
	err := s.db.GetContext(ctx, &dep,
		`SELECT `+deploymentColumns+` FROM deployments WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &dep, err
}

func (s *Store) ListDeployments(ctx context.Context, limit, offset int) ([]*domain.Deployment, error) {
	var deps []*domain.Deployment
	err := s.db.SelectContext(ctx, &deps,
		`SELECT `+deploymentColumns+` FROM deployments
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return deps, err
}

func (s *Store) ListDeploymentsForProperty(ctx context.Context, propertyName string, limit, offset int) ([]*domain.Deployment, error) {
	var deps []*domain.Deployment
	err := s.db.SelectContext(ctx, &deps,
		`SELECT `+deploymentColumns+` FROM deployments WHERE property_name = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, propertyName, limit, offset)
	return deps, err
}

func (s *Store) UpdateDeployment(ctx context.Context, dep *domain.Deployment) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET property_id = $1, current_version = $2, new_version = $3,
		 status = $4, staging_outcome = $5, staging_error = $6, production_outcome = $7,
		 production_error = $8, api_responses = $9, error = $10, started_at = $11, finished_at = $12
		 WHERE id = $13`,
		dep.PropertyID, dep.CurrentVersion, dep.NewVersion,
		dep.Status, dep.StagingOutcome, dep.StagingError, dep.ProductionOutcome,
		dep.ProductionError, dep.APIResponses, dep.Error, dep.StartedAt, dep.FinishedAt,
		dep.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
