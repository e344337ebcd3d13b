// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated counts successful booking proposals.
	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labms_bookings_created_total",
		Help: "Number of bookings created.",
	})

	// BookingConflicts counts proposals rejected by the overlap check.
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labms_booking_conflicts_total",
		Help: "Number of booking proposals rejected due to an overlapping reservation.",
	})

	// OTPSent counts dispatched one-time passcodes by purpose.
	OTPSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labms_otp_sent_total",
		Help: "Number of one-time passcodes dispatched.",
	}, []string{"purpose"})

	// OTPVerified counts successful passcode verifications by purpose.
	OTPVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "labms_otp_verified_total",
		Help: "Number of one-time passcodes successfully verified.",
	}, []string{"purpose"})

	// SessionsCreated counts logins that issued a session token.
	SessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "labms_sessions_created_total",
		Help: "Number of sessions created.",
	})
)
