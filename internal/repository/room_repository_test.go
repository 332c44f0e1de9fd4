package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRoomRepositoryUpsertAndList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectExec("INSERT INTO rooms .* ON CONFLICT \\(room_number\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "301", 40, models.RoomKindLecture, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	room := &models.Room{RoomNumber: "301", Capacity: 40, Kind: models.RoomKindLecture}
	require.NoError(t, repo.Upsert(context.Background(), nil, room))
	assert.NotEmpty(t, room.ID)
	assert.False(t, room.UpdatedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "room_number", "capacity", "kind", "created_at", "updated_at"}).
		AddRow("room-1", "301", 40, "LECTURE", now, now).
		AddRow("room-2", "405", 30, "LAB", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, room_number, capacity, kind, created_at, updated_at FROM rooms ORDER BY room_number ASC")).
		WillReturnRows(rows)

	rooms, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, models.RoomKindLab, rooms[1].Kind)
	assert.Equal(t, 4, rooms[1].Floor())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositoryCount(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rooms")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
