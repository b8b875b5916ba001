package devsim

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.CounterVec
	dropped     prometheus.Counter
	rejected    *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpanel_sim",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpanel_sim",
			Name:      "uploads_total",
			Help:      "Accepted uploads by kind.",
		}, []string{"kind"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpanel_sim",
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deskpanel_sim",
			Name:      "dropped_config_uploads_total",
			Help:      "Config uploads answered by closing the connection.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deskpanel_sim",
			Name:      "rejected_uploads_total",
			Help:      "Uploads refused by validation, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.requests, m.uploads, m.uploadBytes, m.dropped, m.rejected)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
