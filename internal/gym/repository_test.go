package gym

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupGymMock(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	sqlxDB := sqlx.NewDb(conn, "sqlmock")
	return NewRepository(sqlxDB), sqlxDB, mock
}

func TestRepository_CreateGym(t *testing.T) {
	repo, _, mock := setupGymMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO gyms (name, slug, address, description, owner_id)")).
		WithArgs("Iron Temple", "iron-temple", "12 Main St", "", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "address", "description", "owner_id", "created_at"}).
			AddRow(3, "Iron Temple", "iron-temple", "12 Main St", "", 10, now))

	g := &Gym{Name: "Iron Temple", Slug: "iron-temple", Address: "12 Main St", OwnerID: 10}
	require.NoError(t, repo.CreateGym(context.Background(), g))
	assert.Equal(t, 3, g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetScheduleDetails(t *testing.T) {
	repo, sqlxDB, mock := setupGymMock(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	cols := []string{
		"id", "class_id", "start_time", "end_time", "instructor", "current_bookings", "is_cancelled", "created_at",
		"class_name", "max_capacity", "members_only", "class_active", "gym_id", "gym_name", "gym_owner_id",
	}
	mock.ExpectQuery(regexp.QuoteMeta("FROM class_schedules cs")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			7, 4, start, start.Add(time.Hour), "Sam", 2, false, start,
			"Spin", 10, true, true, 3, "Iron Temple", 10,
		))

	d, err := repo.GetScheduleDetails(context.Background(), sqlxDB, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, d.ClassID)
	assert.Equal(t, 10, *d.MaxCapacity)
	assert.True(t, d.MembersOnly)
	assert.Equal(t, 10, d.GymOwnerID)
	assert.True(t, d.Started(start))
	assert.False(t, d.Started(start.Add(-time.Minute)))

	mock.ExpectQuery(regexp.QuoteMeta("FROM class_schedules cs")).
		WithArgs(8).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetScheduleDetails(context.Background(), sqlxDB, 8)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_ListSchedulesFromTime(t *testing.T) {
	repo, _, mock := setupGymMock(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("AND cs.start_time >= $2")).
		WithArgs(3, from).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	out, err := repo.ListSchedules(context.Background(), 3, &from)
	require.NoError(t, err)
	assert.Empty(t, out)
}
