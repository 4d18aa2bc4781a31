package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/angelmondragon/yardgate-backend/pkg/errors"
)

const namespace = "yardgate"

// TransitionMetrics counts lifecycle transitions and report latency.
// A nil receiver is a no-op so services can run without a registry.
type TransitionMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	reports     *prometheus.HistogramVec
}

// NewTransitionMetrics registers the workflow metrics on the provided registerer.
func NewTransitionMetrics(reg prometheus.Registerer) *TransitionMetrics {
	if reg == nil {
		return &TransitionMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Transaction lifecycle transitions applied.",
	}, []string{"transition"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transition_rejections_total",
		Help:      "Transaction lifecycle transitions refused, by error code.",
	}, []string{"transition", "code"})
	reports := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_duration_seconds",
		Help:      "Time spent computing reconciliation reports.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"report"})
	reg.MustRegister(transitions, rejections, reports)
	return &TransitionMetrics{
		transitions: transitions,
		rejections:  rejections,
		reports:     reports,
	}
}

// IncTransition counts a successful transition.
func (m *TransitionMetrics) IncTransition(transition string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition)).Inc()
}

// IncRejection counts a refused transition under the error's code.
func (m *TransitionMetrics) IncRejection(transition string, err error) {
	if m == nil || m.rejections == nil || err == nil {
		return
	}
	code := string(pkgerrors.CodeInternal)
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
	}
	m.rejections.WithLabelValues(normalizeLabel(transition), code).Inc()
}

// ObserveReport records how long the named report took.
func (m *TransitionMetrics) ObserveReport(report string, duration time.Duration) {
	if m == nil || m.reports == nil {
		return
	}
	m.reports.WithLabelValues(normalizeLabel(report)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
