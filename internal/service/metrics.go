package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/events"
)

// Label values for the evaluations counter.
const (
	resultMatch   = "match"
	resultNoMatch = "no_match"
)

type metrics struct {
	evaluations   *prometheus.CounterVec
	purgeFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eligibility_evaluations_total",
			Help: "Criteria evaluations against a client context, partitioned by owner kind and result.",
		}, []string{"kind", "result"}),
		purgeFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "eligibility_criteria_purge_failures_total",
			Help: "Best-effort criteria deletions that failed and may have left an orphaned row.",
		}),
	}
}

func (m *metrics) observe(kind string, matched bool) {
	result := resultNoMatch
	if matched {
		result = resultMatch
	}
	m.evaluations.WithLabelValues(kind, result).Inc()
}

// ownerLabel maps a criteria key kind to the owner kind used as the
// evaluations label, so schedule entries count under the plan.
func ownerLabel(k criteria.OwnerKind) string {
	if k == criteria.KindScheduleCriteria {
		return events.KindSchedulePlan
	}
	return string(k)
}
