package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basic-cleaning/models"
	"basic-cleaning/utils"

	_ "github.com/lib/pq"
)

// PostgresRegistry stores the artifact version index in PostgreSQL
type PostgresRegistry struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresRegistry opens the database and pings it
func NewPostgresRegistry(ctx context.Context, connStr string, maxOpenConns int, logger *utils.Logger) (*PostgresRegistry, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.Debug("connected to PostgreSQL registry")
	return &PostgresRegistry{db: db, logger: logger}, nil
}

// CreateTables creates the artifacts and artifact_aliases tables if they don't exist
func (r *PostgresRegistry) CreateTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS artifacts (
		name        TEXT        NOT NULL,
		version     INTEGER     NOT NULL,
		type        TEXT        NOT NULL,
		description TEXT,
		file_name   TEXT        NOT NULL,
		digest      CHAR(64)    NOT NULL,
		size        BIGINT      NOT NULL,
		object_key  TEXT        NOT NULL,
		uri         TEXT        NOT NULL,
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (name, version)
	);

	CREATE TABLE IF NOT EXISTS artifact_aliases (
		name    TEXT    NOT NULL,
		alias   TEXT    NOT NULL,
		version INTEGER NOT NULL,
		PRIMARY KEY (name, alias),
		FOREIGN KEY (name, version) REFERENCES artifacts (name, version)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_digest ON artifacts (digest);
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	r.logger.Debug("registry tables are ready")
	return nil
}

const selectArtifact = `
	SELECT a.name, a.version, a.type, a.description, a.file_name, a.digest, a.size,
	       a.object_key, a.uri, a.metadata, a.created_at
	FROM artifacts a`

func (r *PostgresRegistry) Lookup(ctx context.Context, ref models.ArtifactRef) (*models.Artifact, error) {
	var row *sql.Row
	if n, ok := ref.VersionNumber(); ok {
		row = r.db.QueryRowContext(ctx, selectArtifact+`
	WHERE a.name = $1 AND a.version = $2`, ref.Name, n)
	} else {
		row = r.db.QueryRowContext(ctx, selectArtifact+`
	JOIN artifact_aliases al ON al.name = a.name AND al.version = a.version
	WHERE al.name = $1 AND al.alias = $2`, ref.Name, ref.Version)
	}

	var (
		a           models.Artifact
		description sql.NullString
		metadata    []byte
	)
	err := row.Scan(&a.Name, &a.Version, &a.Type, &description, &a.FileName, &a.Digest, &a.Size,
		&a.Key, &a.URI, &metadata, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	a.Description = description.String
	a.State = models.ArtifactCommitted

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	aliases, err := r.aliases(ctx, a.Name, a.Version)
	if err != nil {
		return nil, err
	}
	a.Aliases = append(aliases, a.VersionLabel())
	return &a, nil
}

// Register inserts the next version of the artifact and points latest at it, in one transaction
func (r *PostgresRegistry) Register(ctx context.Context, artifact *models.Artifact) error {
	metadata, err := json.Marshal(artifact.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// serialize concurrent publishers of the same name
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, artifact.Name); err != nil {
		return fmt.Errorf("failed to lock artifact name: %w", err)
	}

	var version int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM artifacts WHERE name = $1`, artifact.Name,
	).Scan(&version); err != nil {
		return fmt.Errorf("failed to allocate version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (name, version, type, description, file_name, digest, size, object_key, uri, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		artifact.Name, version, artifact.Type, artifact.Description, artifact.FileName, artifact.Digest,
		artifact.Size, artifact.Key, artifact.URI, metadata, artifact.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO artifact_aliases (name, alias, version) VALUES ($1, $2, $3)
		ON CONFLICT (name, alias) DO UPDATE SET version = EXCLUDED.version`,
		artifact.Name, models.DefaultAlias, version,
	); err != nil {
		return fmt.Errorf("failed to move %s alias: %w", models.DefaultAlias, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	artifact.Version = version
	artifact.Aliases = []string{models.DefaultAlias, artifact.VersionLabel()}
	r.logger.Debug("registered artifact version", "artifact", artifact.Ref().String())
	return nil
}

// Close closes the database connection
func (r *PostgresRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *PostgresRegistry) aliases(ctx context.Context, name string, version int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alias FROM artifact_aliases WHERE name = $1 AND version = $2 ORDER BY alias`, name, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}
