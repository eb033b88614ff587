// Package metrics provides observability for the license registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks license lifecycle counts and critical path durations.
type Metrics struct {
	LicensesClaimed    prometheus.Counter
	LicensesMigrated   prometheus.Counter
	BulkClaimsAssigned prometheus.Counter
	ClaimDuration      prometheus.Histogram
	LookupDuration     prometheus.Histogram
}

// New creates a Metrics instance with all license module metrics registered.
func New() *Metrics {
	return &Metrics{
		LicensesClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licensenet_licenses_claimed_total",
			Help: "Total number of licenses claimed by an account",
		}),
		LicensesMigrated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licensenet_licenses_migrated_total",
			Help: "Total number of staged licenses promoted into the active store",
		}),
		BulkClaimsAssigned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "licensenet_bulk_claims_assigned_total",
			Help: "Total number of licenses assigned through email-based bulk claims",
		}),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "licensenet_claim_duration_seconds",
			Help:    "Duration of Claim operations (ownership critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "licensenet_lookup_duration_seconds",
			Help:    "Duration of key-based lookups including staged migration",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveClaim records the duration of a Claim operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveClaim(start time.Time) {
	m.ClaimDuration.Observe(time.Since(start).Seconds())
}

// ObserveLookup records the duration of a key-based lookup.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveLookup(start time.Time) {
	m.LookupDuration.Observe(time.Since(start).Seconds())
}
