// Package refreshrecords provides a PostgreSQL-backed repository for the
// refresh-token records used by the rotation engine.
package refreshrecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/moviemate/authkeeper/internal/common"
	"github.com/moviemate/authkeeper/internal/dbx"
	"github.com/moviemate/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh record.
func (r *PostgresRepository) Create(ctx context.Context, rec *models.RefreshRecord) error {
	query := `
		INSERT INTO refresh_records (jti, family_id, user_id, token_hash, issued_at, expires_at, user_agent, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := r.db.ExecContext(ctx, query,
		rec.JTI, rec.FamilyID, rec.UserID, rec.TokenHash,
		rec.IssuedAt, rec.ExpiresAt, rec.UserAgent, rec.IP); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByJTI returns the record for the given token id.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByJTI(ctx context.Context, jti string) (*models.RefreshRecord, error) {
	query := `
		SELECT jti, family_id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by_id, user_agent, ip
		FROM refresh_records
		WHERE jti = $1
	`
	rec := &models.RefreshRecord{}
	err := r.db.QueryRowContext(ctx, query, jti).Scan(
		&rec.JTI, &rec.FamilyID, &rec.UserID, &rec.TokenHash,
		&rec.IssuedAt, &rec.ExpiresAt, &rec.RevokedAt, &rec.ReplacedByID,
		&rec.UserAgent, &rec.IP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

// MarkReplaced conditionally revokes the record and points it at its
// successor. The revoked_at guard makes concurrent rotation of the same
// token a single-winner race.
func (r *PostgresRepository) MarkReplaced(ctx context.Context, jti, replacedByID string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_records
		SET revoked_at = $2, replaced_by_id = $3
		WHERE jti = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, jti, now, replacedByID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// RevokeFamily revokes all live records of the family in one statement.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, familyID string, now time.Time) (int64, error) {
	query := `
		UPDATE refresh_records
		SET revoked_at = $2
		WHERE family_id = $1 AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, familyID, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// DeleteExpired purges records past expiry or revoked longer ago than the
// retention window.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM refresh_records
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $2)
	`
	res, err := r.db.ExecContext(ctx, query, now, now.Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
