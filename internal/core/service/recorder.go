package service

// Recorder receives service-level measurements.
// telemetry/metric.Registry is the production implementation.
type Recorder interface {
	// TokenOperation counts an issue/verify/refresh call by result.
	TokenOperation(op, result string)

	// RateLimitDecision counts a limiter outcome: allowed, rejected, degraded or unavailable.
	RateLimitDecision(outcome string)

	// LoginAttempt counts a password login by result.
	LoginAttempt(result string)
}

type nopRecorder struct{}

func (nopRecorder) TokenOperation(string, string) {}
func (nopRecorder) RateLimitDecision(string)      {}
func (nopRecorder) LoginAttempt(string)           {}

func orNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
