package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-proposal-review/internal/model"
)

var (
	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proposal",
		Subsystem: "workflow",
		Name:      "status_transitions_total",
		Help:      "Proposal status changes broken down by previous and new status.",
	}, []string{"from", "to"})

	approvalDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proposal",
		Subsystem: "workflow",
		Name:      "approval_decisions_total",
		Help:      "Recorded reviewer decisions broken down by decision.",
	}, []string{"decision"})

	invitationResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proposal",
		Subsystem: "workflow",
		Name:      "invitation_responses_total",
		Help:      "Stakeholder invitation responses broken down by decision.",
	}, []string{"decision"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proposal",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests broken down by method, route and status class.",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proposal",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution of HTTP requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "route"})
)

func ObserveTransition(from, to model.ProposalStatus) {
	statusTransitions.With(prometheus.Labels{"from": string(from), "to": string(to)}).Inc()
}

func ObserveDecision(decision model.ApprovalStatus) {
	approvalDecisions.WithLabelValues(string(decision)).Inc()
}

func ObserveInvitationResponse(decision model.InvitationStatus) {
	invitationResponses.WithLabelValues(string(decision)).Inc()
}

// ObserveRequest records one finished HTTP request. route is the registered path
// pattern, never the raw URL, to keep label cardinality bounded.
func ObserveRequest(method, route string, status int, latency time.Duration) {
	httpRequests.With(prometheus.Labels{
		"method": method,
		"route":  route,
		"status": statusClass(status),
	}).Inc()
	httpLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
