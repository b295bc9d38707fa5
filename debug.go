package main

import (
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IceFireDB/IceFireDB-Snapshot/db"
)

// serveDebug exposes pprof and the snapshot metrics on addr.
func serveDebug(addr string, d *db.DB) {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, d.Gatherer()}
	http.Handle("/metrics", promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))

	logrus.WithField("addr", addr).Info("debug server listening")
	if err := http.ListenAndServe(addr, nil); err != nil {
		logrus.WithError(err).Error("debug server stopped")
	}
}
