package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Outcome maps always hold every known outcome, zero or not.
type Snapshot struct {
	Registrations       map[string]uint64
	Logins              map[string]uint64
	TokenValidations    map[string]uint64
	AuthEvents          map[string]uint64
	PasswordHashCount   uint64
	PasswordHashTotalNs int64
}

// counterSet is a fixed set of labelled counters.
type counterSet struct {
	labels []string
	values []atomic.Uint64
}

func newCounterSet(labels []string) *counterSet {
	return &counterSet{labels: labels, values: make([]atomic.Uint64, len(labels))}
}

// inc ignores unknown labels so callers cannot grow cardinality.
func (c *counterSet) inc(label string) {
	for i, l := range c.labels {
		if l == label {
			c.values[i].Add(1)
			return
		}
	}
}

func (c *counterSet) snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(c.labels))
	for i, l := range c.labels {
		out[l] = c.values[i].Load()
	}
	return out
}

// InMemoryRecorder keeps counters in process memory. It backs /metrics.
type InMemoryRecorder struct {
	registrations       *counterSet
	logins              *counterSet
	tokenValidations    *counterSet
	authEvents          *counterSet
	passwordHashCount   atomic.Uint64
	passwordHashTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		registrations:    newCounterSet(RegistrationOutcomes),
		logins:           newCounterSet(LoginOutcomes),
		tokenValidations: newCounterSet(TokenOutcomes),
		authEvents:       newCounterSet(EventOutcomes),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Registrations:       m.registrations.snapshot(),
		Logins:              m.logins.snapshot(),
		TokenValidations:    m.tokenValidations.snapshot(),
		AuthEvents:          m.authEvents.snapshot(),
		PasswordHashCount:   m.passwordHashCount.Load(),
		PasswordHashTotalNs: m.passwordHashTotalNs.Load(),
	}
}

// IncRegistration increments the registration counter for outcome.
func (m *InMemoryRecorder) IncRegistration(outcome string) {
	m.registrations.inc(outcome)
}

// IncLogin increments the login counter for outcome.
func (m *InMemoryRecorder) IncLogin(outcome string) {
	m.logins.inc(outcome)
}

// IncTokenValidation increments the token validation counter for outcome.
func (m *InMemoryRecorder) IncTokenValidation(outcome string) {
	m.tokenValidations.inc(outcome)
}

// ObservePasswordHash records the time spent hashing one password.
func (m *InMemoryRecorder) ObservePasswordHash(duration time.Duration) {
	m.passwordHashCount.Add(1)
	m.passwordHashTotalNs.Add(duration.Nanoseconds())
}

// IncAuthEventPublished counts one auth event publish attempt.
func (m *InMemoryRecorder) IncAuthEventPublished(outcome string) {
	m.authEvents.inc(outcome)
}
