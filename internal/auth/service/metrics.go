package service

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/Dhairyash-1/auth-system/internal/auth/service")

// Metrics receives security-relevant events. The prometheus collector in
// internal/auth/metrics implements it.
type Metrics interface {
	Login(result string)
	Refresh(result string)
	SessionsRevoked(reason string, n int)
	PasswordReset(stage string)
}

type noopMetrics struct{}

func (noopMetrics) Login(string)                {}
func (noopMetrics) Refresh(string)              {}
func (noopMetrics) SessionsRevoked(string, int) {}
func (noopMetrics) PasswordReset(string)        {}

func metricsOrNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
