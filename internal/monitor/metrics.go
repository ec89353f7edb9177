package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Metrics holds every collector used by the router and the engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCount       *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RouterStages       *prometheus.CounterVec
	RoutedNotional     prometheus.Counter
	DailyNotional      prometheus.Gauge
	VenueLatency       *prometheus.HistogramVec
	StrategyExecutions *prometheus.CounterVec
	PublishTotal       *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RouterStages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_stage_total",
				Help: "Order submissions reaching each routing stage.",
			},
			[]string{"stage"},
		),
		RoutedNotional: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "router_routed_notional_total",
				Help: "Executed notional committed to the daily tracker.",
			},
		),
		DailyNotional: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "router_daily_notional",
				Help: "Current trading day committed notional.",
			},
		),
		VenueLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_venue_latency_seconds",
				Help:    "Venue adapter execution latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"venue", "outcome"},
		),
		StrategyExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_strategy_orders_total",
				Help: "Orders submitted by strategies, by outcome.",
			},
			[]string{"strategy", "outcome"},
		),
		PublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_publish_total",
				Help: "Total Kafka publish attempts.",
			},
			[]string{"topic", "status"},
		),
	}

	registry.MustRegister(
		m.RequestCount,
		m.RequestDuration,
		m.RouterStages,
		m.RoutedNotional,
		m.DailyNotional,
		m.VenueLatency,
		m.StrategyExecutions,
		m.PublishTotal,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, path, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ObserveStage(stage string) {
	if m == nil {
		return
	}
	m.RouterStages.WithLabelValues(stage).Inc()
}

// ObserveCommit records a committed notional and the resulting daily total.
func (m *Metrics) ObserveCommit(notional, dailyTotal float64) {
	if m == nil {
		return
	}
	m.RoutedNotional.Add(notional)
	m.DailyNotional.Set(dailyTotal)
}

func (m *Metrics) SetDailyNotional(v float64) {
	if m == nil {
		return
	}
	m.DailyNotional.Set(v)
}

func (m *Metrics) ObserveVenue(venue string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.VenueLatency.WithLabelValues(venue, outcome).Observe(d.Seconds())
}

func (m *Metrics) ObserveStrategyOrder(strategyID string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StrategyExecutions.WithLabelValues(strategyID, outcome).Inc()
}

func (m *Metrics) ObservePublish(topic string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.PublishTotal.WithLabelValues(topic, status).Inc()
}
