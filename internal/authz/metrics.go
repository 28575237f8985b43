package authz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_evaluations_total",
		Help: "The total number of authorization evaluations by result",
	}, []string{"result"})
	policyEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authz_policy_evaluations_total",
		Help: "The total number of policy evaluations by policy type and effect",
	}, []string{"type", "effect"})
	evaluationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "authz_evaluation_duration_seconds",
		Help: "Authorization evaluation latency distribution",
	})
)
