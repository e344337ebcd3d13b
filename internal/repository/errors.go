// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and services to distinguish between different failure
// scenarios without inspecting SQL driver errors.
package repository

import "errors"

// ErrResourceNotFound is returned when a referenced lab or piece of
// equipment does not exist or is no longer active.
var ErrResourceNotFound = errors.New("resource not found")

// ErrBookingNotFound is returned when a booking lookup matches no row.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBookingConflict is returned by CreateIfAvailable when the
// proposed interval overlaps an existing pending or confirmed booking
// for the same resource. Handlers should translate this into an HTTP
// 409 response.
var ErrBookingConflict = errors.New("booking conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// booking they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
