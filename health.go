package remotecall

// HealthStatus is a snapshot of a Breaker's health, shaped for JSON health
// endpoints.
type HealthStatus struct {
	// Healthy is true while the circuit is closed or half-open.
	Healthy bool `json:"healthy"`

	// State is the breaker state ("closed", "half-open", "open").
	State string `json:"state"`

	// Requests is the number of calls in the current interval.
	Requests uint32 `json:"requests"`

	// TotalSuccesses is the number of successful calls.
	TotalSuccesses uint32 `json:"total_successes"`

	// TotalFailures is the number of failed calls.
	TotalFailures uint32 `json:"total_failures"`

	// ConsecutiveFailures is the current failure streak.
	ConsecutiveFailures uint32 `json:"consecutive_failures"`

	// ConsecutiveSuccesses is the current success streak.
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}
