package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sosedi_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sosedi_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	NearbyDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sosedi_nearby_duration_ms",
		Help:    "Nearby query duration in milliseconds by entity kind",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	}, []string{"kind"})
	NearbyResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sosedi_nearby_results",
		Help:    "Number of records returned by nearby queries",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"kind"})
	ChatMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sosedi_chat_messages_total",
		Help: "Chat messages persisted",
	})
	ChatDeliveriesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sosedi_chat_deliveries_dropped_total",
		Help: "Live chat deliveries dropped because a subscriber or queue was full",
	})
	WebsocketConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sosedi_websocket_connections",
		Help: "Open live chat connections",
	})
	ActivityDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sosedi_activity_dropped_total",
		Help: "Activity events not delivered to the stream",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(NearbyDurationMs)
	prometheus.MustRegister(NearbyResults)
	prometheus.MustRegister(ChatMessagesTotal)
	prometheus.MustRegister(ChatDeliveriesDropped)
	prometheus.MustRegister(WebsocketConnections)
	prometheus.MustRegister(ActivityDropped)
}

// Handler exposes every registered metric for scraping.
func Handler() http.Handler { return promhttp.Handler() }
