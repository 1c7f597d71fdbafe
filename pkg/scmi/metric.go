// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scmi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scmi",
		Subsystem: "channel",
		Name:      "transactions_total",
		Help:      "Completed SCMI transactions by message and returned status",
	}, []string{"protocol", "message", "status"})
	transactionTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scmi",
		Subsystem: "channel",
		Name:      "transaction_seconds",
		Help:      "Time from taking the channel lock to reading the response",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
)

func init() {
	prometheus.MustRegister(transactions)
	prometheus.MustRegister(transactionTime)
}

// failedLabel is the status label of transactions that produced no SCMI
// status: busy channel, error bit, bad token or bad length.
const failedLabel = "TRANSPORT_ERROR"

func observe(p ProtocolID, m MessageID, status string, d time.Duration) {
	transactions.WithLabelValues(p.String(), MessageName(p, m), status).Inc()
	transactionTime.Observe(d.Seconds())
}
