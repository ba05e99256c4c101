package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prowire/prowire/pkg/logger"
)

var (
	// RestartTotal tracks transport (re)starts, partitioned by kind.
	RestartTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prowire_restarts_total",
		Help: "Total number of transport starts and restarts",
	}, []string{"kind"})
	// ReconfigFailures tracks configuration changes that could not be applied.
	ReconfigFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "prowire_reconfig_failures_total",
		Help: "Total number of failed reconfiguration attempts",
	})
)

// InitMetrics registers the operational metrics with the given registry and,
// when addr is non-empty, starts an HTTP server exposing it.
func InitMetrics(reg *prometheus.Registry, addr string) {
	reg.MustRegister(RestartTotal)
	reg.MustRegister(ReconfigFailures)

	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		logger.Log.Info("Metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Log.Error("Metrics server failed", "err", err)
		}
	}()
}
