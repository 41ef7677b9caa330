// monitor exposes relay health over prometheus plus a couple of expvar
// convenience values, on a listener separate from the game traffic.
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	ActivePlayers     prometheus.Gauge
	MessagesReceived  prometheus.Counter
	MessagesDropped   prometheus.Counter
	HandlerLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		OnlineConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_connections",
			Help:      "Number of open websocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		ActivePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_players",
			Help:      "Number of players across all rooms",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of inbound events",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Total number of inbound events dropped by validation",
		}),
		HandlerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_latency_seconds",
			Help:      "Event handler processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
	}

	prometheus.MustRegister(
		m.OnlineConnections,
		m.ActiveRooms,
		m.ActivePlayers,
		m.MessagesReceived,
		m.MessagesDropped,
		m.HandlerLatency,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("events", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) IncOnlineConnections() {
	m.metrics.OnlineConnections.Inc()
}

func (m *Monitor) DecOnlineConnections() {
	m.metrics.OnlineConnections.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) SetActivePlayers(count int) {
	m.metrics.ActivePlayers.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived() {
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) IncMessagesDropped() {
	m.metrics.MessagesDropped.Inc()
}

func (m *Monitor) ObserveHandlerLatency(duration time.Duration) {
	m.metrics.HandlerLatency.Observe(duration.Seconds())
}
