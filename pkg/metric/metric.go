// Copyright 2021 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

import (
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/u-root/u-pwrc/pkg/logger"
)

// MetricOpts contains naming pieces of the exposed metric
type MetricOpts struct {
	Namespace string
	Subsystem string
	Name      string
}

// StartMetrics adds the metrics handler to a http.ServeMux. The handler
// serves the metrics created through this package followed by everything
// registered with the default Prometheus registry.
func StartMetrics(mux *http.ServeMux) {
	mux.Handle("/metrics", Handler(prometheus.DefaultGatherer))
}

// Handler returns a handler writing this package's metrics and the ones
// gathered from g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", string(expfmt.FmtText))
		metrics.WritePrometheus(rw, true)
		mfs, err := g.Gather()
		if err != nil {
			log.Warnf("Gathering Prometheus metrics: %v", err)
		}
		enc := expfmt.NewEncoder(rw, expfmt.FmtText)
		for _, mf := range mfs {
			if err := enc.Encode(mf); err != nil {
				log.Warnf("Encoding metric family %s: %v", mf.GetName(), err)
				return
			}
		}
	})
}

// Counter creates and returns a metrics.Counter
func Counter(opts MetricOpts, labels []string) *metrics.Counter {
	return metrics.GetOrCreateCounter(optsToString(opts) + labelsToString(labels))
}

// Gauge creates and returns a metrics.Gauge
func Gauge(opts MetricOpts, labels []string, f func() float64) *metrics.Gauge {
	return metrics.GetOrCreateGauge(optsToString(opts)+labelsToString(labels), f)
}

// Histogram creates and returns a metrics.Histogram
func Histogram(opts MetricOpts, labels []string) *metrics.Histogram {
	return metrics.GetOrCreateHistogram(optsToString(opts) + labelsToString(labels))
}

func optsToString(opts MetricOpts) string {
	if opts.Name == "" {
		return ""
	}
	switch {
	case opts.Namespace != "" && opts.Subsystem != "":
		return strings.Join([]string{opts.Namespace, opts.Subsystem, opts.Name}, "_")
	case opts.Namespace != "":
		return strings.Join([]string{opts.Namespace, opts.Name}, "_")
	case opts.Subsystem != "":
		return strings.Join([]string{opts.Subsystem, opts.Name}, "_")
	}
	return opts.Name
}

var log = logger.LogContainer.GetSimpleLogger()

func labelsToString(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	s := "{"
	for _, label := range labels {
		s = s + label + ", "
	}
	return strings.TrimRight(s, ", ") + "}"
}
