package joblog

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts job events per stage.
type PrometheusSink struct {
	events *prometheus.CounterVec
}

// NewPrometheusSink registers the collector against the provided registry.
// A nil registry falls back to the default registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_job_events_total",
			Help: "Job log events partitioned by stage.",
		}, []string{"stage"}),
	}
	if err := reg.Register(s.events); err != nil {
		return nil, fmt.Errorf("register job event collector: %w", err)
	}
	return s, nil
}

// Consume increments the per-stage counter.
func (s *PrometheusSink) Consume(_ context.Context, evt Event) error {
	s.events.WithLabelValues(string(evt.Stage)).Inc()
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
