// Package service hosts the booking workflow and the queue publisher.
// Handlers stay thin; everything with an invariant lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/subashmuthub/lab-management-system/internal/metrics"
	"github.com/subashmuthub/lab-management-system/internal/model"
	"github.com/subashmuthub/lab-management-system/internal/queue"
	"github.com/subashmuthub/lab-management-system/internal/repository"
)

// pastGrace is how far in the past a proposal's start may lie before
// it is rejected. It absorbs clock skew and the time a user spends on
// the booking form.
const pastGrace = 5 * time.Minute

// publishTimeout bounds the detached notification publish.
const publishTimeout = 10 * time.Second

// ErrInvalidInput is matched by errors.Is against the richer
// InputError carrying the reason.
var ErrInvalidInput = errors.New("invalid input")

// ErrEquipmentUnavailable means the equipment exists but is in use or
// under maintenance and cannot be booked right now.
var ErrEquipmentUnavailable = errors.New("equipment unavailable")

// InputError describes a validation failure in caller terms.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

// Is lets errors.Is(err, ErrInvalidInput) succeed.
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

// BookingStore is the persistence surface the service needs. The SQL
// implementation must make CreateIfAvailable atomic: the overlap
// check and the insert happen in one serializable unit.
type BookingStore interface {
	CreateIfAvailable(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	UpdateStatus(ctx context.Context, id uint64, status string) error
}

// ResourceStore resolves bookable resources.
type ResourceStore interface {
	GetActiveLab(ctx context.Context, id uint64) (model.Lab, error)
	GetActiveEquipment(ctx context.Context, id uint64) (model.Equipment, error)
}

// UserStore resolves the requesting user for the detail view.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Notifier publishes the booking.created event. Failures are logged
// and never reach the caller of Propose.
type Notifier interface {
	PublishBookingCreated(ctx context.Context, event queue.BookingCreatedEvent) error
}

// ProposeRequest is the raw proposal as bound from the HTTP body.
// Date is "2006-01-02"; StartTime and EndTime are "15:04" wall-clock
// times on that date, interpreted in UTC.
type ProposeRequest struct {
	UserID       uint64
	ResourceKind string
	ResourceID   uint64
	Date         string
	StartTime    string
	EndTime      string
	Purpose      string
}

// BookingService validates proposals, runs the conflict-safe create
// and emits the best-effort notification.
type BookingService struct {
	bookings  BookingStore
	resources ResourceStore
	users     UserStore
	notifier  Notifier
	log       zerolog.Logger
	now       func() time.Time // injectable for tests
}

func NewBookingService(b BookingStore, r ResourceStore, u UserStore, n Notifier, log zerolog.Logger) *BookingService {
	return &BookingService{bookings: b, resources: r, users: u, notifier: n, log: log, now: time.Now}
}

// Propose validates the request, resolves the resource, and creates
// the booking unless it overlaps an existing pending/confirmed one.
// Overlap uses half-open semantics: a proposal starting exactly when
// another ends does not conflict.
//
// Failure modes, in check order: ErrInvalidInput (bad dates, end not
// after start, start in the past), repository.ErrResourceNotFound,
// ErrEquipmentUnavailable, repository.ErrBookingConflict.
func (s *BookingService) Propose(ctx context.Context, req ProposeRequest) (*model.BookingDetail, error) {
	start, end, err := parseInterval(req.Date, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if err := ValidateInterval(start, end, s.now().UTC()); err != nil {
		return nil, err
	}

	var resourceName string
	switch req.ResourceKind {
	case model.ResourceKindLab:
		lab, err := s.resources.GetActiveLab(ctx, req.ResourceID)
		if err != nil {
			return nil, err
		}
		resourceName = lab.Name
	case model.ResourceKindEquipment:
		eq, err := s.resources.GetActiveEquipment(ctx, req.ResourceID)
		if err != nil {
			return nil, err
		}
		if eq.Status != model.EquipmentAvailable {
			return nil, ErrEquipmentUnavailable
		}
		resourceName = eq.Name
	default:
		return nil, &InputError{Reason: "resource kind must be lab or equipment"}
	}

	booking := model.Booking{
		UserID:       req.UserID,
		ResourceKind: req.ResourceKind,
		ResourceID:   req.ResourceID,
		StartTime:    start,
		EndTime:      end,
		Purpose:      req.Purpose,
	}
	if err := s.bookings.CreateIfAvailable(ctx, &booking); err != nil {
		if errors.Is(err, repository.ErrBookingConflict) {
			metrics.BookingConflicts.Inc()
		}
		return nil, err
	}
	metrics.BookingsCreated.Inc()

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		// The booking is committed; a failed join lookup must not
		// undo it. Return the detail without the identity fields.
		s.log.Error().Err(err).Uint64("user_id", req.UserID).Msg("booking detail user lookup failed")
	}

	s.notifyCreated(booking, resourceName)

	return &model.BookingDetail{
		Booking:      booking,
		ResourceName: resourceName,
		UserName:     user.Name,
		UserEmail:    user.Email,
	}, nil
}

// Cancel soft-deletes the booking by moving it to cancelled. Only the
// owner may cancel. Cancelling an already-cancelled booking is a
// no-op, so the operation is idempotent. The row is kept for history;
// the conflict query ignores cancelled bookings, so the slot is
// immediately proposable again.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.UserID != userID {
		return repository.ErrForbidden
	}
	if booking.Status == model.BookingCancelled {
		return nil
	}
	return s.bookings.UpdateStatus(ctx, bookingID, model.BookingCancelled)
}

// Get returns a single booking, enforcing ownership.
func (s *BookingService) Get(ctx context.Context, bookingID, userID uint64) (model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if booking.UserID != userID {
		return model.Booking{}, repository.ErrForbidden
	}
	return booking, nil
}

// ListMine returns the user's bookings, newest start first.
func (s *BookingService) ListMine(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// notifyCreated publishes the event in a detached goroutine with its
// own deadline. Publish failure is logged and never propagated — the
// booking already committed.
func (s *BookingService) notifyCreated(b model.Booking, resourceName string) {
	event := queue.BookingCreatedEvent{
		EventID:      uuid.NewString(),
		BookingID:    b.ID,
		UserID:       b.UserID,
		ResourceKind: b.ResourceKind,
		ResourceID:   b.ResourceID,
		ResourceName: resourceName,
		StartsAt:     b.StartTime.Format(time.RFC3339),
		EndsAt:       b.EndTime.Format(time.RFC3339),
		Purpose:      b.Purpose,
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.notifier.PublishBookingCreated(ctx, event); err != nil {
			s.log.Error().Err(err).Uint64("booking_id", b.ID).Msg("booking notification publish failed")
		}
	}()
}

// ValidateInterval enforces the interval invariants: end strictly
// after start, and start no more than pastGrace before now.
func ValidateInterval(start, end, now time.Time) error {
	if !end.After(start) {
		return &InputError{Reason: "end time must be after start time"}
	}
	if start.Before(now.Add(-pastGrace)) {
		return &InputError{Reason: "cannot book a time in the past"}
	}
	return nil
}

// parseInterval combines the date with the two wall-clock times. All
// bookings are kept in UTC.
func parseInterval(date, startTime, endTime string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, &InputError{Reason: fmt.Sprintf("invalid date %q", date)}
	}
	start, err := atTime(day, startTime)
	if err != nil {
		return time.Time{}, time.Time{}, &InputError{Reason: fmt.Sprintf("invalid start time %q", startTime)}
	}
	end, err := atTime(day, endTime)
	if err != nil {
		return time.Time{}, time.Time{}, &InputError{Reason: fmt.Sprintf("invalid end time %q", endTime)}
	}
	return start, end, nil
}

func atTime(day time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
