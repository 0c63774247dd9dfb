package kizuna

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kizuna"

var (
	adoptedObjects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of objects that completed their first-reference transition",
			Name:      "objects_adopted_total",
			Namespace: metricsNamespace,
		},
	)
	destroyedObjects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of objects destroyed after their last strong release",
			Name:      "objects_destroyed_total",
			Namespace: metricsNamespace,
		},
	)
	liveObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Adopted objects not yet destroyed",
			Name:      "objects_live",
			Namespace: metricsNamespace,
		},
	)
	refusedReferences = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Strong reference attempts refused because the object was dead, including failed weak locks",
			Name:      "references_refused_total",
			Namespace: metricsNamespace,
		},
	)
	weakCleanups = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of weak side-state cleanups performed",
			Name:      "weak_cleanups_total",
			Namespace: metricsNamespace,
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		adoptedObjects,
		destroyedObjects,
		liveObjects,
		refusedReferences,
		weakCleanups,
	}
}

// RegisterMetrics registers the ownership metrics with reg. Registering twice
// with the same registerer is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return errors.Wrap(err, "failed to register ownership metrics")
		}
	}
	return nil
}
