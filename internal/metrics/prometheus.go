package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"strconv"
	"strings"
	"time"
)

const (
	namespace = "litetable_reader"

	// serverTimingKey carries the service-side latency of an attempt, formatted as
	// "gfet4t7; dur=<milliseconds>".
	serverTimingKey = "server-timing"
	serverTimingDur = "dur="
)

// Prometheus records attempts and operations as Prometheus metrics.
type Prometheus struct {
	attempts         *prometheus.CounterVec
	attemptLatency   *prometheus.HistogramVec
	attemptsInFlight prometheus.Gauge
	operations       *prometheus.CounterVec
	opLatency        *prometheus.HistogramVec
	rows             *prometheus.CounterVec
	serverLatency    *prometheus.HistogramVec
}

// NewPrometheus registers the reader metrics with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		attempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of ReadRows attempts by final status code.",
			},
			[]string{"table", "code"},
		),
		attemptLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "attempt_latency_seconds",
				Help:      "ReadRows attempt duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table", "code"},
		),
		attemptsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "attempts_in_flight",
				Help:      "Number of ReadRows attempts currently streaming.",
			},
		),
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of read operations by final status code.",
			},
			[]string{"table", "code"},
		),
		opLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_latency_seconds",
				Help:      "Read operation duration in seconds, across all attempts.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table", "code"},
		),
		rows: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_total",
				Help:      "Total number of rows delivered to callers.",
			},
			[]string{"table"},
		),
		serverLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "server_latency_seconds",
				Help:      "Service-reported attempt latency from the server-timing header.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"table"},
		),
	}
}

func (p *Prometheus) AttemptStarted(Attempt) error {
	p.attemptsInFlight.Inc()
	return nil
}

func (p *Prometheus) AttemptCompleted(a Attempt, code codes.Code) error {
	p.attemptsInFlight.Dec()
	p.attempts.WithLabelValues(a.Table, code.String()).Inc()
	p.attemptLatency.WithLabelValues(a.Table, code.String()).Observe(time.Since(a.Started).Seconds())
	return nil
}

func (p *Prometheus) OperationCompleted(op Operation, code codes.Code) error {
	p.operations.WithLabelValues(op.Table, code.String()).Inc()
	p.opLatency.WithLabelValues(op.Table, code.String()).Observe(time.Since(op.Started).Seconds())
	p.rows.WithLabelValues(op.Table).Add(float64(op.Rows))
	return nil
}

// Metadata records the server-timing header when the service sends one.
func (p *Prometheus) Metadata(a Attempt, md metadata.MD) error {
	values := md.Get(serverTimingKey)
	if len(values) == 0 {
		return nil
	}
	d, err := parseServerTiming(values[0])
	if err != nil {
		return err
	}
	p.serverLatency.WithLabelValues(a.Table).Observe(d.Seconds())
	return nil
}

func (p *Prometheus) Trailers(Attempt, metadata.MD) error {
	return nil
}

func parseServerTiming(v string) (time.Duration, error) {
	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, serverTimingDur) {
			continue
		}
		ms, err := strconv.ParseFloat(strings.TrimPrefix(part, serverTimingDur), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid server-timing duration %q: %w", part, err)
		}
		return time.Duration(ms * float64(time.Millisecond)), nil
	}
	return 0, fmt.Errorf("server-timing %q has no duration", v)
}
