package db

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cast"

	"github.com/IceFireDB/IceFireDB-Snapshot/driver"
)

// extMetrics is implemented by engines that keep their own statistics.
type extMetrics interface {
	Metrics() (tit string, metrics []map[string]interface{})
}

var engineCacheDesc = prometheus.NewDesc(
	"icefiredb_engine_cache",
	"Engine cache statistics.",
	[]string{"engine", "stat"}, nil,
)

type engineCollector struct {
	name string
	src  extMetrics
}

func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- engineCacheDesc
}

func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	_, metrics := c.src.Metrics()
	for _, m := range metrics {
		for stat, v := range m {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				continue
			}
			ch <- prometheus.MustNewConstMetric(engineCacheDesc, prometheus.GaugeValue, f, c.name, stat)
		}
	}
}

func registerEngineMetrics(reg prometheus.Registerer, name string, engine driver.DB) {
	if src, ok := engine.(extMetrics); ok {
		reg.MustRegister(&engineCollector{name: name, src: src})
	}
}
