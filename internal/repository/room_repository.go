package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/timetable-api/internal/models"
)

const roomColumns = "id, room_number, capacity, kind, created_at, updated_at"

// RoomRepository manages persistence for rooms.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns every room ordered by room number.
func (r *RoomRepository) List(ctx context.Context) ([]models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms ORDER BY room_number ASC", roomColumns)
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// Count returns the number of rooms.
func (r *RoomRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rooms"); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return total, nil
}

// Upsert inserts a room or refreshes the one sharing its number.
func (r *RoomRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = now

	const query = `
INSERT INTO rooms (id, room_number, capacity, kind, created_at, updated_at)
VALUES (:id, :room_number, :capacity, :kind, :created_at, :updated_at)
ON CONFLICT (room_number) DO UPDATE
SET capacity = EXCLUDED.capacity,
    kind = EXCLUDED.kind,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, room); err != nil {
		return fmt.Errorf("upsert room %s: %w", room.RoomNumber, err)
	}
	return nil
}
