package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"slapp/internal/domain"
	"slapp/internal/pkg/timerange"
)

// Monday, 2 January 2023.
var monday = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func at(day time.Time, hh, mm int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, day.Location())
}

func ivl(start, end time.Time) timerange.Interval {
	return timerange.Interval{Start: start, End: end}
}

// mondayOnlyHours opens the studio 09:00-18:00 on Mondays and closes it on every other day.
func mondayOnlyHours(studioID int64) []domain.StudioOperatingHours {
	out := make([]domain.StudioOperatingHours, 0, 7)
	for d := 0; d < 7; d++ {
		h := domain.StudioOperatingHours{StudioID: studioID, DayOfWeek: d}
		if d == int(time.Monday) {
			h.IsOpen = true
			h.StartTime = strp("09:00")
			h.EndTime = strp("18:00")
		}
		out = append(out, h)
	}
	return out
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockCatalog) GetStudio(ctx context.Context, studioID int64) (*domain.Studio, error) {
	args := m.Called(ctx, studioID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Studio), args.Error(1)
}

func (m *MockCatalog) GetOperatingHours(ctx context.Context, studioID int64) ([]domain.StudioOperatingHours, error) {
	args := m.Called(ctx, studioID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StudioOperatingHours), args.Error(1)
}

func (m *MockCatalog) GetCancellationPolicy(ctx context.Context, studioID int64) (*domain.CancellationPolicy, error) {
	args := m.Called(ctx, studioID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CancellationPolicy), args.Error(1)
}

func (m *MockCatalog) ListOverrides(ctx context.Context, roomID int64, iv timerange.Interval) ([]domain.Availability, error) {
	args := m.Called(ctx, roomID, iv)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Availability), args.Error(1)
}

func (m *MockCatalog) ListSpecialPrices(ctx context.Context, roomID int64) ([]domain.SpecialPrice, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SpecialPrice), args.Error(1)
}

func (m *MockCatalog) ListStudiosByOwner(ctx context.Context, ownerID int64) ([]domain.Studio, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Studio), args.Error(1)
}

func (m *MockCatalog) CountActiveRooms(ctx context.Context, studioID int64) (int64, error) {
	args := m.Called(ctx, studioID)
	return args.Get(0).(int64), args.Error(1)
}

// studioCatalog wires a MockCatalog with one studio (id 5, UTC) and one
// active room (id 10, 20.00/hour) open on Mondays. Expectations registered by
// overrides are matched before the defaults.
func studioCatalog(overrides ...func(cat *MockCatalog)) *MockCatalog {
	cat := new(MockCatalog)
	for _, o := range overrides {
		o(cat)
	}
	cat.On("GetRoom", mock.Anything, int64(10)).Return(&domain.Room{
		ID: 10, StudioID: 5, Name: "Live Room", HourlyRate: decimal.NewFromInt(20), IsActive: true,
	}, nil).Maybe()
	cat.On("GetRoom", mock.Anything, mock.Anything).Return(nil, domain.ErrRecordNotFound).Maybe()
	cat.On("GetStudio", mock.Anything, int64(5)).Return(&domain.Studio{
		ID: 5, OwnerID: 1, Name: "Basement Sound", Timezone: "UTC", IsActive: true,
	}, nil).Maybe()
	cat.On("GetStudio", mock.Anything, mock.Anything).Return(nil, domain.ErrRecordNotFound).Maybe()
	cat.On("GetOperatingHours", mock.Anything, int64(5)).Return(mondayOnlyHours(5), nil).Maybe()
	cat.On("ListOverrides", mock.Anything, int64(10), mock.Anything).Return([]domain.Availability{}, nil).Maybe()
	cat.On("ListSpecialPrices", mock.Anything, int64(10)).Return([]domain.SpecialPrice{}, nil).Maybe()
	cat.On("ListStudiosByOwner", mock.Anything, int64(1)).Return([]domain.Studio{
		{ID: 5, OwnerID: 1, Name: "Basement Sound", Timezone: "UTC", IsActive: true},
	}, nil).Maybe()
	cat.On("ListStudiosByOwner", mock.Anything, mock.Anything).Return([]domain.Studio{}, nil).Maybe()
	cat.On("CountActiveRooms", mock.Anything, int64(5)).Return(int64(1), nil).Maybe()
	return cat
}

// memStore is an in-memory ReservationStore.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Reservation

	insertErr error
	// beforeUpdate runs once, before the next UpdateStatus compares statuses.
	beforeUpdate func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]domain.Reservation)}
}

func (s *memStore) Insert(_ context.Context, r *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.nextID++
	r.ID = s.nextID
	s.rows[r.ID] = *r
	return nil
}

// put stores r as is, bypassing the service.
func (s *memStore) put(r domain.Reservation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.rows[r.ID] = r
	return r.ID
}

func (s *memStore) status(id int64) domain.ReservationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

func (s *memStore) setStatus(id int64, st domain.ReservationStatus) {
	r := s.rows[id]
	r.Status = st
	s.rows[id] = r
}

func (s *memStore) FindByID(_ context.Context, id int64) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return &r, nil
}

func (s *memStore) FindActiveOverlapping(_ context.Context, roomID int64, iv timerange.Interval, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.sorted() {
		if r.RoomID == roomID && hasStatus(statuses, r.Status) && timerange.Overlaps(ivl(r.StartTime, r.EndTime), iv) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id int64, from domain.ReservationStatus, upd domain.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hook := s.beforeUpdate; hook != nil {
		s.beforeUpdate = nil
		hook(s)
	}
	r, ok := s.rows[id]
	if !ok || r.Status != from {
		return false, nil
	}
	upd.Apply(&r)
	s.rows[id] = r
	return true, nil
}

func (s *memStore) FindStalePending(_ context.Context, cutoff time.Time, afterID int64, limit int) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.sorted() {
		if r.ID > afterID && r.Status == domain.ReservationPending && !r.CreatedAt.After(cutoff) {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) ListByRoomBetween(_ context.Context, roomID int64, from, to time.Time, statuses []domain.ReservationStatus) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.sorted() {
		if r.RoomID == roomID && hasStatus(statuses, r.Status) && timerange.Overlaps(ivl(r.StartTime, r.EndTime), ivl(from, to)) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *memStore) ListPendingByStudio(_ context.Context, studioID int64) ([]domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Reservation
	for _, r := range s.sorted() {
		if r.StudioID == studioID && r.Status == domain.ReservationPending {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) StatsByStudioBetween(_ context.Context, studioID int64, iv timerange.Interval, status domain.ReservationStatus) (domain.ReservationTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := domain.ReservationTotals{Revenue: decimal.Zero}
	for _, r := range s.rows {
		if r.StudioID != studioID || r.Status != status || r.StartTime.Before(iv.Start) || !r.StartTime.Before(iv.End) {
			continue
		}
		totals.Count++
		totals.Revenue = totals.Revenue.Add(r.TotalPrice)
		totals.Reserved += r.EndTime.Sub(r.StartTime)
	}
	return totals, nil
}

func (s *memStore) sorted() []domain.Reservation {
	out := make([]domain.Reservation, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func hasStatus(list []domain.ReservationStatus, s domain.ReservationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memTx struct {
	store ReservationStore
}

func (t memTx) WithinRoomTx(ctx context.Context, _ int64, fn func(ctx context.Context, store ReservationStore) error) error {
	return fn(ctx, t.store)
}
