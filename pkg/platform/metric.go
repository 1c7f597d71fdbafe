// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package platform

import (
	"sync/atomic"

	vm "github.com/VictoriaMetrics/metrics"
	"github.com/u-root/u-pwrc/pkg/metric"
)

// hookSupported is 1 for each hook the most recent Ops can back.
var hookSupported [hookCount]int32

var (
	hookGauges = func() []*vm.Gauge {
		g := make([]*vm.Gauge, hookCount)
		for _, h := range Hooks() {
			h := h
			g[h] = metric.Gauge(metric.MetricOpts{
				Namespace: "upwrc",
				Subsystem: "psci",
				Name:      "hook_supported",
			}, []string{`hook="` + h.String() + `"`}, func() float64 {
				return float64(atomic.LoadInt32(&hookSupported[h]))
			})
		}
		return g
	}()
	hookCalls = func() []*vm.Counter {
		c := make([]*vm.Counter, hookCount)
		for _, h := range Hooks() {
			c[h] = metric.Counter(metric.MetricOpts{
				Namespace: "upwrc",
				Subsystem: "psci",
				Name:      "calls_total",
			}, []string{`hook="` + h.String() + `"`})
		}
		return c
	}()
	fatalCount = metric.Counter(metric.MetricOpts{
		Namespace: "upwrc",
		Subsystem: "psci",
		Name:      "fatal_total",
	}, nil)
	gracefulFallbacks = metric.Counter(metric.MetricOpts{
		Namespace: "upwrc",
		Subsystem: "shutdown",
		Name:      "forceful_fallbacks_total",
	}, nil)
	gracefulTime = metric.Histogram(metric.MetricOpts{
		Namespace: "upwrc",
		Subsystem: "shutdown",
		Name:      "graceful_seconds",
	}, nil)
)

func publishSupported(o *Ops) {
	for _, h := range Hooks() {
		var v int32
		if o.Supported(h) {
			v = 1
		}
		atomic.StoreInt32(&hookSupported[h], v)
	}
}
