// Package queue defines message payloads exchanged over the message broker
// and the background consumer that turns them into user notifications.
package queue

// BookingCreatedEvent is published when a booking proposal succeeds.
// It carries enough information for downstream consumers to notify the
// user without querying the primary database.
type BookingCreatedEvent struct {
	EventID      string `json:"event_id"`
	BookingID    uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	ResourceKind string `json:"resource_kind"`
	ResourceID   uint64 `json:"resource_id"`
	ResourceName string `json:"resource_name"`
	StartsAt     string `json:"starts_at"`
	EndsAt       string `json:"ends_at"`
	Purpose      string `json:"purpose"`
	CreatedAt    string `json:"created_at"`
}
