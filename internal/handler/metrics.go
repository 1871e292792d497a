package handler

import (
	"fmt"
	"net/http"

	"github.com/vestibule/vestibule/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounterFamily(w, "vestibule_registrations_total", "Registration attempts by outcome.",
		metrics.RegistrationOutcomes, snap.Registrations)
	writeCounterFamily(w, "vestibule_logins_total", "Login attempts by outcome.",
		metrics.LoginOutcomes, snap.Logins)
	writeCounterFamily(w, "vestibule_token_validations_total", "Bearer token checks by outcome.",
		metrics.TokenOutcomes, snap.TokenValidations)
	writeCounterFamily(w, "vestibule_auth_events_published_total", "Auth events sent to the Redis stream by outcome.",
		metrics.EventOutcomes, snap.AuthEvents)

	writeMetric(w, "# HELP vestibule_password_hash_duration_seconds Time spent hashing new passwords.\n")
	writeMetric(w, "# TYPE vestibule_password_hash_duration_seconds summary\n")
	writeMetric(w, "vestibule_password_hash_duration_seconds_count %d\n", snap.PasswordHashCount)
	writeMetric(w, "vestibule_password_hash_duration_seconds_sum %.6f\n", float64(snap.PasswordHashTotalNs)/1e9)
}

// writeCounterFamily writes one labelled counter per outcome, in order.
func writeCounterFamily(w http.ResponseWriter, name, help string, outcomes []string, values map[string]uint64) {
	writeMetric(w, "# HELP %s %s\n", name, help)
	writeMetric(w, "# TYPE %s counter\n", name)
	for _, outcome := range outcomes {
		writeMetric(w, "%s{outcome=%q} %d\n", name, outcome, values[outcome])
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
