package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counts(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncRegistration(RegistrationSuccess)
	m.IncRegistration(RegistrationConflict)
	m.IncRegistration(RegistrationConflict)
	m.IncLogin(LoginInvalid)
	m.IncTokenValidation(TokenValid)
	m.ObservePasswordHash(250 * time.Millisecond)
	m.ObservePasswordHash(750 * time.Millisecond)
	m.IncAuthEventPublished(EventDropped)

	snap := m.Snapshot()

	if snap.Registrations[RegistrationSuccess] != 1 {
		t.Errorf("registrations success = %d, want 1", snap.Registrations[RegistrationSuccess])
	}
	if snap.Registrations[RegistrationConflict] != 2 {
		t.Errorf("registrations conflict = %d, want 2", snap.Registrations[RegistrationConflict])
	}
	if snap.Logins[LoginInvalid] != 1 || snap.Logins[LoginSuccess] != 0 {
		t.Errorf("unexpected logins: %v", snap.Logins)
	}
	if snap.TokenValidations[TokenValid] != 1 {
		t.Errorf("token validations valid = %d, want 1", snap.TokenValidations[TokenValid])
	}
	if snap.AuthEvents[EventDropped] != 1 || snap.AuthEvents[EventPublished] != 0 {
		t.Errorf("unexpected auth events: %v", snap.AuthEvents)
	}
	if snap.PasswordHashCount != 2 || time.Duration(snap.PasswordHashTotalNs) != time.Second {
		t.Errorf("hash observations = %d / %s", snap.PasswordHashCount, time.Duration(snap.PasswordHashTotalNs))
	}
}

func TestInMemoryRecorder_UnknownOutcomeIgnored(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncLogin("bogus")

	snap := m.Snapshot()
	if len(snap.Logins) != len(LoginOutcomes) {
		t.Errorf("login outcomes = %v, want exactly %v", snap.Logins, LoginOutcomes)
	}
	if _, ok := snap.Logins["bogus"]; ok {
		t.Error("unknown outcome should not create a series")
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncTokenValidation(TokenInvalid)
		}()
	}
	wg.Wait()

	if got := m.Snapshot().TokenValidations[TokenInvalid]; got != 50 {
		t.Errorf("token invalid = %d, want 50", got)
	}
}
