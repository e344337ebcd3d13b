package model

import "time"

// Booking lifecycle states.  Cancellation is a status change, never a
// row delete, so history and audit queries keep working.  Only
// pending and confirmed bookings occupy a slot.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// Booking records a reservation of a lab or a piece of equipment for
// a half-open time interval [StartTime, EndTime).
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – user who made the booking.
//  ResourceKind – "lab" or "equipment".
//  ResourceID   – ID in the labs or equipment table.
//  StartTime    – start of the interval (UTC, inclusive).
//  EndTime      – end of the interval (UTC, exclusive).
//  Status       – pending | confirmed | completed | cancelled.
//  Purpose      – free-text reason supplied by the requester.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type Booking struct {
	ID           uint64    `json:"id"`            // bookings.id
	UserID       uint64    `json:"user_id"`       // bookings.user_id
	ResourceKind string    `json:"resource_kind"` // bookings.resource_kind
	ResourceID   uint64    `json:"resource_id"`   // bookings.resource_id
	StartTime    time.Time `json:"start_time"`    // bookings.start_time
	EndTime      time.Time `json:"end_time"`      // bookings.end_time
	Status       string    `json:"status"`        // bookings.status
	Purpose      string    `json:"purpose"`       // bookings.purpose
	CreatedAt    time.Time `json:"created_at"`    // bookings.created_at
	UpdatedAt    time.Time `json:"updated_at"`    // bookings.updated_at
}

// Overlaps reports whether the booking's half-open interval
// intersects [start, end).  Back-to-back intervals do not overlap.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// BookingDetail is the display variant returned after a successful
// proposal: the booking joined with the resource name and the owner's
// identity for rendering without extra round trips.
type BookingDetail struct {
	Booking
	ResourceName string `json:"resource_name"`
	UserName     string `json:"user_name"`
	UserEmail    string `json:"user_email"`
}
