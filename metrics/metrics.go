package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics holds the HTTP and shop collectors. A nil *Metrics or one built
// without a registerer records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cartMutations *prometheus.CounterVec
	cartUnits     prometheus.Counter
	imageOps      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	cartMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_mutations_total",
		Help:      "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})
	cartUnits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cart_units_added_total",
		Help:      "Units added to carts.",
	})
	imageOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "product_image_operations_total",
		Help:      "Product image saves and deletes by outcome.",
	}, []string{"op", "outcome"})
	reg.MustRegister(requests, duration, cartMutations, cartUnits, imageOps)
	return &Metrics{
		requests:      requests,
		duration:      duration,
		cartMutations: cartMutations,
		cartUnits:     cartUnits,
		imageOps:      imageOps,
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	route = normalizeLabel(route)
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CartMutation records one cart operation; outcome is e.g. "ok", "rejected" or "error".
func (m *Metrics) CartMutation(op, outcome string) {
	if m == nil || m.cartMutations == nil {
		return
	}
	m.cartMutations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) CartUnitsAdded(n int) {
	if m == nil || m.cartUnits == nil || n <= 0 {
		return
	}
	m.cartUnits.Add(float64(n))
}

func (m *Metrics) ImageOperation(op string, err error) {
	if m == nil || m.imageOps == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.imageOps.WithLabelValues(normalizeLabel(op), outcome).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
