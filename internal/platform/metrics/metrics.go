// Package metrics defines the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the progression engine's counters.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	SkipChallenges *prometheus.CounterVec
	LevelUps       prometheus.Counter
	Achievements   prometheus.Counter
	StoreErrors    prometheus.Counter
}

// New registers the engine collectors on reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_training_submissions_total",
				Help: "Training submissions by result",
			},
			[]string{"result"}, // accepted | duplicate | rejected
		),
		SkipChallenges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_skip_challenges_total",
				Help: "Skip-level challenge attempts by result",
			},
			[]string{"result"}, // passed | failed
		),
		LevelUps: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_level_ups_total",
				Help: "Level advancements awarded",
			},
		),
		Achievements: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_achievements_unlocked_total",
				Help: "Achievements newly completed",
			},
		),
		StoreErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "engine_store_errors_total",
				Help: "Progress store failures",
			},
		),
	}
}
