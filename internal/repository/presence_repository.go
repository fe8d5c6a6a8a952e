package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/presence-api/internal/models"
)

const presenceColumns = `id, user_id, status, scan_time, created_at, updated_at`

const presenceRecordSelect = `SELECT p.id, p.user_id, p.status, p.scan_time, p.created_at, p.updated_at,
    u.id AS "user.id", u.matricule AS "user.matricule", u.first_name AS "user.first_name",
    u.last_name AS "user.last_name", u.role AS "user.role", u.referentiel AS "user.referentiel"
FROM presences p
JOIN users u ON u.matricule = p.user_id`

// PresenceRepository handles persistence for presence records.
type PresenceRepository struct {
	db *sqlx.DB
}

// NewPresenceRepository constructs the repository.
func NewPresenceRepository(db *sqlx.DB) *PresenceRepository {
	return &PresenceRepository{db: db}
}

// Create inserts a presence as-is. No per-day uniqueness is checked.
func (r *PresenceRepository) Create(ctx context.Context, presence *models.Presence) error {
	stampPresence(presence)
	query := `INSERT INTO presences (` + presenceColumns + `)
VALUES (:id, :user_id, :status, :scan_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, presence); err != nil {
		return fmt.Errorf("create presence: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts presence only when the learner has no presence with scan_time
// in [from, to]. Check and insert run as a single statement. It reports whether a row
// was written.
func (r *PresenceRepository) CreateIfAbsent(ctx context.Context, presence *models.Presence, from, to time.Time) (bool, error) {
	stampPresence(presence)
	const query = `INSERT INTO presences (id, user_id, status, scan_time, created_at, updated_at)
SELECT $1::text, $2::text, $3::text, $4::timestamptz, $5::timestamptz, $6::timestamptz
WHERE NOT EXISTS (
    SELECT 1 FROM presences WHERE user_id = $2::text AND scan_time >= $7::timestamptz AND scan_time <= $8::timestamptz
)`
	res, err := r.db.ExecContext(ctx, query,
		presence.ID, presence.UserID, presence.Status, presence.ScanTime, presence.CreatedAt, presence.UpdatedAt, from, to)
	if err != nil {
		return false, fmt.Errorf("create presence if absent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create presence if absent: %w", err)
	}
	return affected > 0, nil
}

// ExistsInRange reports whether the learner has any presence with scan_time in [from, to].
func (r *PresenceRepository) ExistsInRange(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM presences WHERE user_id = $1 AND scan_time >= $2 AND scan_time <= $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, from, to); err != nil {
		return false, fmt.Errorf("check presence in range: %w", err)
	}
	return exists, nil
}

// LatestInRange returns the most recent presence in [from, to], or nil when there is none.
func (r *PresenceRepository) LatestInRange(ctx context.Context, userID string, from, to time.Time) (*models.Presence, error) {
	query := `SELECT ` + presenceColumns + ` FROM presences
WHERE user_id = $1 AND scan_time >= $2 AND scan_time <= $3
ORDER BY scan_time DESC
LIMIT 1`
	var presence models.Presence
	if err := r.db.GetContext(ctx, &presence, query, userID, from, to); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest presence in range: %w", err)
	}
	return &presence, nil
}

// ListByUser returns a learner's presences, newest first.
func (r *PresenceRepository) ListByUser(ctx context.Context, userID string) ([]models.Presence, error) {
	query := `SELECT ` + presenceColumns + ` FROM presences WHERE user_id = $1 ORDER BY scan_time DESC`
	presences := []models.Presence{}
	if err := r.db.SelectContext(ctx, &presences, query, userID); err != nil {
		return nil, fmt.Errorf("list presences by user: %w", err)
	}
	return presences, nil
}

// List returns presences joined with their learner, newest first.
func (r *PresenceRepository) List(ctx context.Context, filter models.PresenceFilter) ([]models.PresenceRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("p.scan_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("p.scan_time <= $%d", len(args)))
	}
	if filter.Status != nil && filter.Status.Valid() {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if filter.Referentiel != "" {
		args = append(args, filter.Referentiel)
		where = append(where, fmt.Sprintf("u.referentiel = $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, fmt.Sprintf("p.user_id = $%d", len(args)))
	}

	query := fmt.Sprintf("%s\nWHERE %s\nORDER BY p.scan_time DESC", presenceRecordSelect, strings.Join(where, " AND "))
	records := []models.PresenceRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list presences: %w", err)
	}
	return records, nil
}

// FindRecordByID returns a presence joined with its learner or sql.ErrNoRows.
func (r *PresenceRepository) FindRecordByID(ctx context.Context, id string) (*models.PresenceRecord, error) {
	query := presenceRecordSelect + "\nWHERE p.id = $1"
	var record models.PresenceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find presence: %w", err)
	}
	return &record, nil
}

// UpdateStatus corrects a presence's status and optionally its scan time. It returns
// sql.ErrNoRows when the id does not exist.
func (r *PresenceRepository) UpdateStatus(ctx context.Context, id string, status models.PresenceStatus, scanTime *time.Time) error {
	sets := []string{"status = $2", "updated_at = $3"}
	args := []interface{}{id, status, time.Now().UTC()}
	if scanTime != nil {
		args = append(args, *scanTime)
		sets = append(sets, fmt.Sprintf("scan_time = $%d", len(args)))
	}
	query := fmt.Sprintf("UPDATE presences SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update presence status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update presence status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func stampPresence(presence *models.Presence) {
	now := time.Now().UTC()
	if presence.ID == "" {
		presence.ID = uuid.NewString()
	}
	if presence.CreatedAt.IsZero() {
		presence.CreatedAt = now
	}
	presence.UpdatedAt = now
}
