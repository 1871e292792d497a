// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Registration outcomes.
const (
	RegistrationSuccess  = "success"
	RegistrationInvalid  = "invalid"
	RegistrationConflict = "conflict"
	RegistrationError    = "error"
)

// Login outcomes.
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid"
	LoginError   = "error"
)

// Token validation outcomes.
const (
	TokenValid   = "valid"
	TokenInvalid = "invalid"
)

// Auth event publication outcomes.
const (
	EventPublished = "success"
	EventDropped   = "dropped"
)

// RegistrationOutcomes lists the outcomes in exposition order.
var RegistrationOutcomes = []string{RegistrationSuccess, RegistrationInvalid, RegistrationConflict, RegistrationError}

// LoginOutcomes lists the outcomes in exposition order.
var LoginOutcomes = []string{LoginSuccess, LoginInvalid, LoginError}

// TokenOutcomes lists the outcomes in exposition order.
var TokenOutcomes = []string{TokenValid, TokenInvalid}

// EventOutcomes lists the outcomes in exposition order.
var EventOutcomes = []string{EventPublished, EventDropped}

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	IncRegistration(outcome string)
	IncLogin(outcome string)
	IncTokenValidation(outcome string)
	ObservePasswordHash(duration time.Duration)
	IncAuthEventPublished(outcome string)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
