package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SalesMetrics tracks register throughput and failure modes.
type SalesMetrics struct {
	outcomes   *prometheus.CounterVec
	revenue    prometheus.Counter
	refunded   prometheus.Counter
	lines      prometheus.Histogram
	collisions prometheus.Counter
	duration   prometheus.Histogram
}

func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	m := &SalesMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_sales_total",
			Help: "Sale attempts by outcome code.",
		}, []string{"outcome"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_revenue_cents_total",
			Help: "Committed sale totals in cents, tax included.",
		}),
		refunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_voided_cents_total",
			Help: "Totals of voided sales in cents, tax included.",
		}),
		lines: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sale_lines",
			Help:    "Number of lines per committed sale.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sale_ticket_collisions_total",
			Help: "Ticket numbers rejected by the unique index.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_sale_duration_seconds",
			Help:    "Time spent creating a sale.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.outcomes, m.revenue, m.refunded, m.lines, m.collisions, m.duration)
	return m
}

// ObserveCompleted records a committed sale.
func (m *SalesMetrics) ObserveCompleted(totalCents, lines int, elapsed time.Duration) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues("completed").Inc()
	m.revenue.Add(float64(totalCents))
	m.lines.Observe(float64(lines))
	m.duration.Observe(elapsed.Seconds())
}

// ObserveVoided records a voided sale.
func (m *SalesMetrics) ObserveVoided(totalCents int) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues("voided").Inc()
	m.refunded.Add(float64(totalCents))
}

// IncFailed counts a rejected sale under its error code.
func (m *SalesMetrics) IncFailed(code string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *SalesMetrics) IncTicketCollision() {
	if m == nil || m.collisions == nil {
		return
	}
	m.collisions.Inc()
}
