package domain

import "time"

// Severity labels reported by the vulnerability source. Labels outside this
// set are accepted and fall through to the default SLA.
const (
	SeverityCritical = "Critical"
	SeveritySevere   = "Severe"
	SeverityModerate = "Moderate"
)

// SLADuration maps a severity label to the response-time commitment attached
// to tickets of that severity. Pure; the single canonical table for ticket
// creation, breach notification, and follow-up scheduling.
func SLADuration(severity string) time.Duration {
	switch severity {
	case SeverityCritical:
		return 2 * time.Minute
	case SeveritySevere:
		return 5 * time.Minute
	case SeverityModerate:
		return 7 * time.Minute
	default:
		return 10 * time.Minute
	}
}
