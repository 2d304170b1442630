package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Webhook signals accepted after auth+validation"},
		[]string{"action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to the venue"},
		[]string{"symbol", "side"},
	)
	RejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_rejects_total", Help: "Webhook requests rejected before submission"},
		[]string{"reason"},
	)
	VenueRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "venue_retries_total", Help: "Venue API calls retried after a transient fault"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, OrdersTotal, RejectsTotal, VenueRetriesTotal)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
