package gtfsrttrigger

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "ticks_total",
		Help:      "Evaluation ticks started",
	})
	metricRulesEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "rules_evaluated_total",
		Help:      "Rule condition evaluations",
	})
	metricMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "matches_total",
		Help:      "Rules newly satisfied by a snapshot",
	}, []string{"kind"})
	metricDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "deliveries_total",
		Help:      "Webhook delivery outcomes",
	}, []string{"result"})
	metricClaimsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "claims_rejected_total",
		Help:      "Dispatch claims lost to a concurrent evaluation",
	})
	metricFeedFetchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gtfsrt_trigger",
		Name:      "feed_fetch_failures_total",
		Help:      "Realtime snapshot fetches that failed and deferred a feed",
	}, []string{"feed"})
)

func init() {
	prometheus.MustRegister(
		metricTicks,
		metricRulesEvaluated,
		metricMatches,
		metricDeliveries,
		metricClaimsRejected,
		metricFeedFetchFailures,
	)
}
