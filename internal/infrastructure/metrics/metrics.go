package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "credential_broker"

// Metrics holds the Prometheus collectors of the broker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	resolveAttempts  *prometheus.CounterVec
	configureTotal   *prometheus.CounterVec
	ticketExchanges  *prometheus.CounterVec
	ticketsSwept     prometheus.Counter
	offboardTotal    *prometheus.CounterVec
	planResolutions  *prometheus.CounterVec
	docstoreDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
}

// New registers the broker collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		resolveAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_attempts_total",
			Help:      "Access key resolution attempts by outcome.",
		}, []string{"outcome"}),
		configureTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "configure_total",
			Help:      "Access requests issued by command.",
		}, []string{"command"}),
		ticketExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_exchanges_total",
			Help:      "Ticket exchange attempts by outcome.",
		}, []string{"outcome"}),
		ticketsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_swept_total",
			Help:      "Used or expired tickets removed by the janitor.",
		}),
		offboardTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offboard_total",
			Help:      "Tenant offboarding runs by result.",
		}, []string{"result"}),
		planResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_resolutions_total",
			Help:      "Plan resolutions by deciding source and plan.",
		}, []string{"source", "plan"}),
		docstoreDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "docstore_request_duration_seconds",
			Help:      "Document store call latency by operation and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) ResolveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.resolveAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Configured(command string) {
	if m == nil {
		return
	}
	m.configureTotal.WithLabelValues(command).Inc()
}

func (m *Metrics) TicketExchange(outcome string) {
	if m == nil {
		return
	}
	m.ticketExchanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TicketsSwept(n int) {
	if m == nil {
		return
	}
	m.ticketsSwept.Add(float64(n))
}

func (m *Metrics) Offboarded(result string) {
	if m == nil {
		return
	}
	m.offboardTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) PlanResolved(source, plan string) {
	if m == nil {
		return
	}
	m.planResolutions.WithLabelValues(source, plan).Inc()
}

func (m *Metrics) ObserveDocstore(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.docstoreDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) HTTPRequest(route string, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
}
