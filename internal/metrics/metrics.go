// Package metrics exposes worker and generation metrics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/phrazzld/goalforge/internal/queue"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "goalforge"

// Metrics records job deliveries and AI generations. It implements
// queue.Observer and the processors' generation observer.
type Metrics struct {
	jobs            *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

var _ queue.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job deliveries by queue, job name and outcome.",
		}, []string{"queue", "job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent in job handlers.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"queue", "job"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Tokens consumed by successful generations.",
		}, []string{"provider", "role"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of successful provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"provider"}),
	}

	for _, c := range []prometheus.Collector{m.jobs, m.jobDuration, m.tokens, m.providerLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// JobFinished implements queue.Observer.
func (m *Metrics) JobFinished(_ context.Context, job *queue.Job, outcome queue.Outcome, _ error, elapsed time.Duration) {
	m.jobs.WithLabelValues(job.Queue, job.Name, string(outcome)).Inc()
	m.jobDuration.WithLabelValues(job.Queue, job.Name).Observe(elapsed.Seconds())
}

// GenerationFinished records the tokens and latency of one generation. A
// zero latency marks a rejected output and only its tokens are counted.
func (m *Metrics) GenerationFinished(provider, role string, tokens int, latency time.Duration) {
	if tokens > 0 {
		m.tokens.WithLabelValues(provider, role).Add(float64(tokens))
	}
	if latency > 0 {
		m.providerLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}
