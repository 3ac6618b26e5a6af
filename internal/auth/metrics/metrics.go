// Package metrics exposes authentication events to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records auth events. It satisfies service.Metrics.
type Collector struct {
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	sessionsRevoked *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	passwordResets  *prometheus.CounterVec
	httpResponses   *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_token_refresh_total",
			Help: "Refresh token exchanges by result.",
		}, []string{"result"}),
		sessionsRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sessions_revoked_total",
			Help: "Sessions deleted, by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by endpoint class.",
		}, []string{"class"}),
		passwordResets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_password_resets_total",
			Help: "Password reset flow events by stage.",
		}, []string{"stage"}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_http_errors_total",
			Help: "Error responses by status and error code.",
		}, []string{"status", "code"}),
	}

	reg.MustRegister(
		c.logins,
		c.refreshes,
		c.sessionsRevoked,
		c.rateLimited,
		c.passwordResets,
		c.httpResponses,
	)

	return c
}

func (c *Collector) Login(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) Refresh(result string) {
	c.refreshes.WithLabelValues(result).Inc()
}

func (c *Collector) SessionsRevoked(reason string, n int) {
	if n <= 0 {
		return
	}
	c.sessionsRevoked.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) PasswordReset(stage string) {
	c.passwordResets.WithLabelValues(stage).Inc()
}

// RateLimited records a request rejected for class.
func (c *Collector) RateLimited(class string) {
	c.rateLimited.WithLabelValues(class).Inc()
}

// HTTPError records an error response written by the API.
func (c *Collector) HTTPError(status int, code string) {
	c.httpResponses.WithLabelValues(strconv.Itoa(status), code).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
