package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"slapp/internal/database"
	"slapp/internal/domain"
	"slapp/internal/modules/booking"
	"slapp/internal/pkg/clock"
	"slapp/internal/pkg/timerange"
)

var monday = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func at(hh, mm int) time.Time {
	return time.Date(2023, 1, 2, hh, mm, 0, 0, time.UTC)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_"))
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	if err := database.Migrate(db, Models()...); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func pending(roomID int64, start, end time.Time) *domain.Reservation {
	return &domain.Reservation{
		RoomID: roomID, StudioID: 5, CustomerID: 42,
		StartTime: start, EndTime: end,
		TotalPrice: decimal.RequireFromString("40.00"),
		Status:     domain.ReservationPending,
		CreatedAt:  monday.Add(-24 * time.Hour),
		UpdatedAt:  monday.Add(-24 * time.Hour),
	}
}

func TestReservationRepository_InsertAndFind(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	r := pending(10, at(10, 0), at(12, 0))
	r.ArtistName = "Static Bloom"
	require.NoError(t, repo.Insert(ctx, r))
	require.NotZero(t, r.ID)

	got, err := repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.StartTime.Equal(r.StartTime))
	assert.True(t, got.EndTime.Equal(r.EndTime))
	assert.Equal(t, "40.00", got.TotalPrice.StringFixed(2))
	assert.Equal(t, domain.ReservationPending, got.Status)
	assert.Equal(t, "Static Bloom", got.ArtistName)
	assert.Nil(t, got.CancelledAt)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestReservationRepository_FindActiveOverlapping(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	a := pending(10, at(10, 0), at(12, 0))
	b := pending(10, at(13, 0), at(14, 0))
	b.Status = domain.ReservationCancelled
	c := pending(11, at(10, 0), at(12, 0))
	for _, r := range []*domain.Reservation{a, b, c} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	got, err := repo.FindActiveOverlapping(ctx, 10, timerange.Interval{Start: at(11, 0), End: at(14, 0)}, booking.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = repo.FindActiveOverlapping(ctx, 10, timerange.Interval{Start: at(12, 0), End: at(13, 0)}, booking.ActiveStatuses)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReservationRepository_UpdateStatusIsCompareAndSet(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	r := pending(10, at(10, 0), at(12, 0))
	require.NoError(t, repo.Insert(ctx, r))

	ok, err := repo.UpdateStatus(ctx, r.ID, domain.ReservationPending, domain.StatusUpdate{
		Status: domain.ReservationConfirmed, UpdatedAt: monday,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateStatus(ctx, r.ID, domain.ReservationPending, domain.StatusUpdate{
		Status: domain.ReservationRejected, UpdatedAt: monday, RejectReason: "late",
	})
	require.NoError(t, err)
	assert.False(t, ok)

	cancelledAt := monday.Add(time.Hour)
	refund := decimal.RequireFromString("20.00")
	ok, err = repo.UpdateStatus(ctx, r.ID, domain.ReservationConfirmed, domain.StatusUpdate{
		Status: domain.ReservationCancelled, UpdatedAt: cancelledAt,
		CancelledAt: &cancelledAt, CancelReason: "sick drummer", CancelledBy: domain.ActorCustomer,
		RefundAmount: &refund,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, got.Status)
	assert.Empty(t, got.RejectReason)
	assert.Equal(t, "sick drummer", got.CancelReason)
	assert.Equal(t, domain.ActorCustomer, got.CancelledBy)
	require.NotNil(t, got.CancelledAt)
	assert.True(t, got.CancelledAt.Equal(cancelledAt))
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, "20.00", got.RefundAmount.StringFixed(2))
}

func TestReservationRepository_FindStalePendingPages(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		r := pending(10, at(9+i, 0), at(10+i, 0))
		require.NoError(t, repo.Insert(ctx, r))
		ids = append(ids, r.ID)
	}
	fresh := pending(10, at(15, 0), at(16, 0))
	fresh.CreatedAt = monday
	require.NoError(t, repo.Insert(ctx, fresh))

	cutoff := monday.Add(-time.Hour)
	page, err := repo.FindStalePending(ctx, cutoff, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[:3], []int64{page[0].ID, page[1].ID, page[2].ID})

	page, err = repo.FindStalePending(ctx, cutoff, page[2].ID, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[1].ID)
}

func TestReservationRepository_Listings(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	late := pending(10, at(15, 0), at(16, 0))
	early := pending(10, at(9, 0), at(10, 0))
	early.CreatedAt = late.CreatedAt.Add(time.Minute)
	confirmed := pending(10, at(11, 0), at(12, 0))
	confirmed.Status = domain.ReservationConfirmed
	nextDay := pending(10, at(10, 0).AddDate(0, 0, 1), at(11, 0).AddDate(0, 0, 1))
	for _, r := range []*domain.Reservation{late, early, confirmed, nextDay} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	day, err := repo.ListByRoomBetween(ctx, 10, monday, monday.AddDate(0, 0, 1), booking.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, day, 3)
	assert.Equal(t, []int64{early.ID, confirmed.ID, late.ID}, []int64{day[0].ID, day[1].ID, day[2].ID})

	queue, err := repo.ListPendingByStudio(ctx, 5)
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, late.ID, queue[0].ID)
}

func TestReservationRepository_StatsByStudioBetween(t *testing.T) {
	repo := NewReservationRepository(setupTestDB(t))
	ctx := context.Background()

	long := pending(10, at(10, 0), at(12, 0))
	long.Status = domain.ReservationConfirmed
	short := pending(11, at(13, 0), at(14, 30))
	short.Status = domain.ReservationConfirmed
	short.TotalPrice = decimal.RequireFromString("30.05")
	open := pending(10, at(15, 0), at(16, 0))
	otherStudio := pending(12, at(10, 0), at(11, 0))
	otherStudio.StudioID = 6
	otherStudio.Status = domain.ReservationConfirmed
	february := pending(10, at(10, 0).AddDate(0, 1, 0), at(11, 0).AddDate(0, 1, 0))
	february.Status = domain.ReservationConfirmed
	for _, r := range []*domain.Reservation{long, short, open, otherStudio, february} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	january := timerange.Interval{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	totals, err := repo.StatsByStudioBetween(ctx, 5, january, domain.ReservationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Count)
	assert.Equal(t, "70.05", totals.Revenue.StringFixed(2))
	assert.Equal(t, 3*time.Hour+30*time.Minute, totals.Reserved)

	none, err := repo.StatsByStudioBetween(ctx, 7, january, domain.ReservationConfirmed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Count)
	assert.True(t, none.Revenue.IsZero())
}

func TestGormTxManager_ConcurrentBookingsOnSQLite(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cat := NewCatalog(db)

	studio := &domain.Studio{OwnerID: 1, Name: "Tape Op", Timezone: "UTC", IsActive: true}
	require.NoError(t, cat.Studios.Create(ctx, studio))
	require.NoError(t, cat.Studios.SetOperatingHours(ctx, studio.ID, weekHours()))
	room := &domain.Room{StudioID: studio.ID, Name: "A", HourlyRate: decimal.NewFromInt(20), IsActive: true}
	require.NoError(t, cat.Rooms.Create(ctx, room))

	log, _ := test.NewNullLogger()
	repo := NewReservationRepository(db)
	svc := booking.NewService(cat, repo, NewGormTxManager(db), clock.NewFixed(monday.Add(-time.Hour)), log, booking.Config{})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateReservation(ctx, booking.CreateReservationRequest{
				RoomID: room.ID, CustomerID: 42, StartTime: at(10, 0), EndTime: at(12, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range errs {
		assert.ErrorIs(t, err, booking.ErrDoubleBooked)
	}

	list, err := repo.ListByRoomBetween(ctx, room.ID, monday, monday.AddDate(0, 0, 1), booking.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "40.00", list[0].TotalPrice.StringFixed(2))
}

func weekHours() []domain.StudioOperatingHours {
	open, close := "09:00", "18:00"
	out := make([]domain.StudioOperatingHours, 0, 7)
	for d := 0; d < 7; d++ {
		out = append(out, domain.StudioOperatingHours{DayOfWeek: d, IsOpen: true, StartTime: &open, EndTime: &close})
	}
	return out
}

func newMockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestReservationRepository_Postgres_InsertExclusionViolation(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "reservations"`)).
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: domain.ReservationOverlapConstraint})

	err := repo.Insert(context.Background(), pending(10, at(10, 0), at(12, 0)))
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23P01", pgErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Postgres_UpdateStatusLostRace(t *testing.T) {
	db, mock := newMockPostgres(t)
	repo := NewReservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "reservations" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), 7, domain.ReservationPending, domain.StatusUpdate{
		Status: domain.ReservationConfirmed, UpdatedAt: monday,
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxManager_Postgres_LocksRoomRow(t *testing.T) {
	db, mock := newMockPostgres(t)
	txm := NewGormTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "rooms" WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectCommit()

	called := false
	err := txm.WithinRoomTx(context.Background(), 10, func(ctx context.Context, store booking.ReservationStore) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTxManager_Postgres_RollsBackOnError(t *testing.T) {
	db, mock := newMockPostgres(t)
	txm := NewGormTxManager(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectRollback()

	err := txm.WithinRoomTx(context.Background(), 10, func(ctx context.Context, store booking.ReservationStore) error {
		return booking.ErrDoubleBooked
	})
	assert.ErrorIs(t, err, booking.ErrDoubleBooked)
	assert.NoError(t, mock.ExpectationsWereMet())
}
