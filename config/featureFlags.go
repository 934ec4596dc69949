package config

import (
	"os"
	"strings"
)

func envFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OutboxDirectProcessing makes the server consume occurrence events in-process
// instead of waiting for the Pub/Sub push endpoint.
//
// Set via env:
// - OUTBOX_DIRECT_PROCESSING=true
func OutboxDirectProcessing() bool {
	return envFlag("OUTBOX_DIRECT_PROCESSING")
}

// MarkUnpaidDeletesPayments switches "mark as unpaid" to also purge the
// occurrence's ledger payments. Request-level options override it.
//
// Set via env:
// - MARK_UNPAID_DELETES_PAYMENTS=true
func MarkUnpaidDeletesPayments() bool {
	return envFlag("MARK_UNPAID_DELETES_PAYMENTS")
}

// SkipMigrations disables AutoMigrate on startup.
func SkipMigrations() bool {
	return envFlag("SKIP_MIGRATIONS")
}

// TimelineHorizonMonths is how far ahead generate-projections reaches when no
// end month is given.
//
// Set via env:
// - TIMELINE_DEFAULT_HORIZON_MONTHS (default 12)
func TimelineHorizonMonths() int {
	n := intFromEnv("TIMELINE_DEFAULT_HORIZON_MONTHS", 12)
	if n <= 0 {
		return 12
	}
	return n
}
