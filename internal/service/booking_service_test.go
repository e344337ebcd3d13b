package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subashmuthub/lab-management-system/internal/model"
	"github.com/subashmuthub/lab-management-system/internal/queue"
	"github.com/subashmuthub/lab-management-system/internal/repository"
)

// fakeBookingStore reproduces the repository's check-then-insert
// semantics behind a mutex so concurrent Propose calls race against a
// real critical section.
type fakeBookingStore struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]model.Booking
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{nextID: 1, bookings: make(map[uint64]model.Booking)}
}

func (f *fakeBookingStore) CreateIfAvailable(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.bookings {
		if existing.ResourceKind != b.ResourceKind || existing.ResourceID != b.ResourceID {
			continue
		}
		if existing.Status != model.BookingPending && existing.Status != model.BookingConfirmed {
			continue
		}
		if existing.Overlaps(b.StartTime, b.EndTime) {
			return repository.ErrBookingConflict
		}
	}
	b.ID = f.nextID
	f.nextID++
	b.Status = model.BookingPending
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	f.bookings[b.ID] = *b
	return nil
}

func (f *fakeBookingStore) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrBookingNotFound
	}
	return b, nil
}

func (f *fakeBookingStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) UpdateStatus(_ context.Context, id uint64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.Status = status
	b.UpdatedAt = time.Now().UTC()
	f.bookings[id] = b
	return nil
}

type fakeResourceStore struct {
	labs      map[uint64]model.Lab
	equipment map[uint64]model.Equipment
}

func (f *fakeResourceStore) GetActiveLab(_ context.Context, id uint64) (model.Lab, error) {
	lab, ok := f.labs[id]
	if !ok {
		return model.Lab{}, repository.ErrResourceNotFound
	}
	return lab, nil
}

func (f *fakeResourceStore) GetActiveEquipment(_ context.Context, id uint64) (model.Equipment, error) {
	eq, ok := f.equipment[id]
	if !ok {
		return model.Equipment{}, repository.ErrResourceNotFound
	}
	return eq, nil
}

type fakeUserStore struct{ users map[uint64]model.User }

func (f *fakeUserStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return model.User{}, repository.ErrBookingNotFound
	}
	return u, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []queue.BookingCreatedEvent
}

func (f *fakeNotifier) PublishBookingCreated(_ context.Context, e queue.BookingCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

// testClock keeps bookings safely in the future relative to "now".
var testClock = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func newTestService(store *fakeBookingStore) *BookingService {
	resources := &fakeResourceStore{
		labs: map[uint64]model.Lab{1: {ID: 1, Name: "Chemistry Lab 1", Capacity: 24, IsActive: true}},
		equipment: map[uint64]model.Equipment{
			7: {ID: 7, Name: "Oscilloscope", Status: model.EquipmentAvailable, IsActive: true},
			8: {ID: 8, Name: "Centrifuge", Status: model.EquipmentMaintenance, IsActive: true},
		},
	}
	users := &fakeUserStore{users: map[uint64]model.User{
		42: {ID: 42, Name: "Dana Lee", Email: "dana@example.edu", Role: model.RoleStudent},
		43: {ID: 43, Name: "Sam Ortiz", Email: "sam@example.edu", Role: model.RoleStudent},
	}}
	svc := NewBookingService(store, resources, users, &fakeNotifier{}, zerolog.Nop())
	svc.now = func() time.Time { return testClock }
	return svc
}

func labRequest(userID uint64, start, end string) ProposeRequest {
	return ProposeRequest{
		UserID:       userID,
		ResourceKind: model.ResourceKindLab,
		ResourceID:   1,
		Date:         "2026-03-09",
		StartTime:    start,
		EndTime:      end,
		Purpose:      "organic chemistry practical",
	}
}

func TestProposeCreatesPendingBooking(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	assert.Equal(t, model.BookingPending, detail.Status)
	assert.Equal(t, "Chemistry Lab 1", detail.ResourceName)
	assert.Equal(t, "Dana Lee", detail.UserName)
	assert.Equal(t, "dana@example.edu", detail.UserEmail)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), detail.StartTime)
	assert.Equal(t, time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC), detail.EndTime)
}

func TestProposeRejectsOverlap(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	_, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	cases := []struct {
		name       string
		start, end string
	}{
		{"identical interval", "10:00", "12:00"},
		{"starts inside", "11:00", "13:00"},
		{"ends inside", "09:00", "11:00"},
		{"fully contains", "09:00", "13:00"},
		{"fully contained", "10:30", "11:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Propose(context.Background(), labRequest(43, tc.start, tc.end))
			assert.ErrorIs(t, err, repository.ErrBookingConflict)
		})
	}
}

func TestProposeBackToBackDoesNotConflict(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	_, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	// Half-open intervals: [12:00,14:00) touches [10:00,12:00) without
	// overlapping, and [08:00,10:00) likewise.
	_, err = svc.Propose(context.Background(), labRequest(43, "12:00", "14:00"))
	assert.NoError(t, err)
	_, err = svc.Propose(context.Background(), labRequest(43, "08:00", "10:00"))
	assert.NoError(t, err)
}

func TestProposeValidation(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	cases := []struct {
		name string
		req  ProposeRequest
	}{
		{"end equals start", labRequest(42, "10:00", "10:00")},
		{"end before start", labRequest(42, "12:00", "10:00")},
		{"bad date", ProposeRequest{UserID: 42, ResourceKind: "lab", ResourceID: 1, Date: "03/09/2026", StartTime: "10:00", EndTime: "12:00"}},
		{"bad time", ProposeRequest{UserID: 42, ResourceKind: "lab", ResourceID: 1, Date: "2026-03-09", StartTime: "10am", EndTime: "12:00"}},
		{"unknown kind", ProposeRequest{UserID: 42, ResourceKind: "room", ResourceID: 1, Date: "2026-03-09", StartTime: "10:00", EndTime: "12:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Propose(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestProposeRejectsPastStart(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	// testClock is 08:00 on the booking day; anything before 07:55
	// (the five-minute grace) is in the past.
	_, err := svc.Propose(context.Background(), labRequest(42, "06:00", "07:00"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Inside the grace window the proposal goes through.
	_, err = svc.Propose(context.Background(), labRequest(42, "07:58", "09:00"))
	assert.NoError(t, err)
}

func TestProposeUnknownResource(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	req := labRequest(42, "10:00", "12:00")
	req.ResourceID = 99
	_, err := svc.Propose(context.Background(), req)
	assert.ErrorIs(t, err, repository.ErrResourceNotFound)
}

func TestProposeEquipmentUnderMaintenance(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	req := labRequest(42, "10:00", "12:00")
	req.ResourceKind = model.ResourceKindEquipment
	req.ResourceID = 8
	_, err := svc.Propose(context.Background(), req)
	assert.ErrorIs(t, err, ErrEquipmentUnavailable)
}

func TestEquipmentAndLabSchedulesAreIndependent(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	_, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	req := labRequest(43, "10:00", "12:00")
	req.ResourceKind = model.ResourceKindEquipment
	req.ResourceID = 7
	_, err = svc.Propose(context.Background(), req)
	assert.NoError(t, err)
}

func TestConcurrentProposalsOnlyOneWins(t *testing.T) {
	store := newFakeBookingStore()
	svc := newTestService(store)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			assert.ErrorIs(t, err, repository.ErrBookingConflict)
		}
	}
	assert.Equal(t, 1, success, "exactly one concurrent proposal must win")
}

func TestLabDayScenario(t *testing.T) {
	svc := newTestService(newFakeBookingStore())
	ctx := context.Background()

	first, err := svc.Propose(ctx, labRequest(42, "09:00", "10:00"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, first.Status)

	_, err = svc.Propose(ctx, labRequest(43, "09:30", "10:30"))
	assert.ErrorIs(t, err, repository.ErrBookingConflict)

	second, err := svc.Propose(ctx, labRequest(43, "10:00", "11:00"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, second.Status)
}

// failingNotifier always errors; the proposal must still succeed.
type failingNotifier struct{}

func (failingNotifier) PublishBookingCreated(context.Context, queue.BookingCreatedEvent) error {
	return assert.AnError
}

func TestProposeSurvivesNotifierFailure(t *testing.T) {
	store := newFakeBookingStore()
	svc := newTestService(store)
	svc.notifier = failingNotifier{}

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)
	assert.NotZero(t, detail.ID)
}

func TestCancelFreesTheSlot(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), detail.ID, 42))

	// Cancelled bookings no longer block the interval.
	_, err = svc.Propose(context.Background(), labRequest(43, "10:00", "12:00"))
	assert.NoError(t, err)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), detail.ID, 42))
	assert.NoError(t, svc.Cancel(context.Background(), detail.ID, 42))
}

func TestCancelEnforcesOwnership(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(context.Background(), detail.ID, 43), repository.ErrForbidden)
	assert.ErrorIs(t, svc.Cancel(context.Background(), 999, 42), repository.ErrBookingNotFound)
}

func TestGetEnforcesOwnership(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	detail, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), detail.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, detail.ID, got.ID)

	_, err = svc.Get(context.Background(), detail.ID, 43)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestListMine(t *testing.T) {
	svc := newTestService(newFakeBookingStore())

	_, err := svc.Propose(context.Background(), labRequest(42, "10:00", "12:00"))
	require.NoError(t, err)
	_, err = svc.Propose(context.Background(), labRequest(42, "13:00", "14:00"))
	require.NoError(t, err)
	_, err = svc.Propose(context.Background(), labRequest(43, "15:00", "16:00"))
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
