package metrics

import "github.com/prometheus/client_golang/prometheus"

// WidgetMetrics exposes counters/histograms for the widget engine.
type WidgetMetrics struct {
	chatSends     *prometheus.CounterVec
	chatLatency   prometheus.Histogram
	geocodeTotal  *prometheus.CounterVec
	viabilityTotal *prometheus.CounterVec
	bookingsTotal prometheus.Counter
}

func NewWidgetMetrics(reg prometheus.Registerer) *WidgetMetrics {
	m := &WidgetMetrics{
		chatSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Subsystem: "chat",
			Name:      "sends_total",
			Help:      "Total chat round-trips by outcome",
		}, []string{"status"}),
		chatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "widget",
			Subsystem: "chat",
			Name:      "send_latency_seconds",
			Help:      "Latency of chat round-trips",
			Buckets:   prometheus.DefBuckets,
		}),
		geocodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Subsystem: "geocode",
			Name:      "lookups_total",
			Help:      "Total geocoding lookups by kind and outcome",
		}, []string{"kind", "status"}),
		viabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "widget",
			Subsystem: "viability",
			Name:      "checks_total",
			Help:      "Total viability checks by result",
		}, []string{"result"}),
		bookingsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "widget",
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Total confirmed bookings",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.chatSends, m.chatLatency, m.geocodeTotal, m.viabilityTotal, m.bookingsTotal)
	return m
}

func (m *WidgetMetrics) ObserveChatSend(status string, seconds float64) {
	if m == nil {
		return
	}
	m.chatSends.WithLabelValues(status).Inc()
	m.chatLatency.Observe(seconds)
}

func (m *WidgetMetrics) ObserveGeocode(kind, status string) {
	if m == nil {
		return
	}
	m.geocodeTotal.WithLabelValues(kind, status).Inc()
}

func (m *WidgetMetrics) ObserveViability(installable bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if installable {
		result = "installable"
	}
	m.viabilityTotal.WithLabelValues(result).Inc()
}

func (m *WidgetMetrics) ObserveBookingConfirmed() {
	if m == nil {
		return
	}
	m.bookingsTotal.Inc()
}
