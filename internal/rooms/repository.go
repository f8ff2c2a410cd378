// Package rooms provides the narrow membership lookups the game engine needs
// from the rooms service. Room and group administration itself lives outside
// this process.
package rooms

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mindvswild/api/internal/models"
)

// DB defines what the repository needs from the database layer. *pgxpool.Pool
// satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements membership lookups against the rooms schema.
type Repository struct {
	db DB
}

// NewRepository creates a new rooms repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// IsMember reports whether the user participates in the room.
func (r *Repository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	const stmt = `
SELECT EXISTS (
	SELECT 1 FROM rooms_roomuser
	WHERE room_id = $1 AND user_id = $2
);`

	var member bool
	if err := r.db.QueryRow(ctx, stmt, roomID, userID).Scan(&member); err != nil {
		return false, fmt.Errorf("failed to check room membership: %w", err)
	}
	return member, nil
}

// IsAdmin reports whether the user may start games in the room: the room's
// creator, or an admin of the group the room belongs to.
func (r *Repository) IsAdmin(ctx context.Context, roomID, userID int64) (bool, error) {
	const stmt = `
SELECT EXISTS (
	SELECT 1 FROM rooms_room r
	LEFT JOIN groups_groupuser gu
		ON gu.group_id = r.group_id AND gu.user_id = $2 AND gu.is_admin
	WHERE r.id = $1 AND (r.created_by_id = $2 OR gu.user_id IS NOT NULL)
);`

	var admin bool
	if err := r.db.QueryRow(ctx, stmt, roomID, userID).Scan(&admin); err != nil {
		return false, fmt.Errorf("failed to check room admin: %w", err)
	}
	return admin, nil
}

// ListParticipants returns the room's members ordered by when they joined.
// The order is load-bearing: it is the leaderboard tie-break.
func (r *Repository) ListParticipants(ctx context.Context, roomID int64) ([]models.Participant, error) {
	const stmt = `
SELECT u.id, u.username
FROM rooms_roomuser ru
JOIN auth_user u ON u.id = ru.user_id
WHERE ru.room_id = $1
ORDER BY ru.joined_at, ru.id;`

	rows, err := r.db.Query(ctx, stmt, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list room participants: %w", err)
	}

	participants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Participant, error) {
		var p models.Participant
		if err := row.Scan(&p.UserID, &p.Username); err != nil {
			return models.Participant{}, err
		}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan room participants: %w", err)
	}

	return participants, nil
}
