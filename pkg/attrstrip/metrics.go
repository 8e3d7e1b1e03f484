// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

package attrstrip

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultDisabled  = "disabled"
	resultUnchanged = "unchanged"
	resultStripped  = "stripped"

	passStructural = "structural"
	passTextual    = "textual"
)

// Metrics are stripping metrics. They can be shared by many strippers.
type Metrics struct {
	documents     *prometheus.CounterVec
	removed       *prometheus.CounterVec
	parseFailures prometheus.Counter
}

// NewMetrics returns metrics registered in reg. Nil reg means metrics are not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documents: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stripattrs_documents_total",
			Help: "Total number of documents passed through the stripper, by result.",
		}, []string{"result"}),
		removed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "stripattrs_attributes_removed_total",
			Help: "Total number of attribute and object key occurrences removed, by pass.",
		}, []string{"pass"}),
		parseFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "stripattrs_parse_failures_total",
			Help: "Total number of documents the structural pass could not parse.",
		}),
	}
	for _, r := range []string{resultDisabled, resultUnchanged, resultStripped} {
		m.documents.WithLabelValues(r)
	}
	for _, p := range []string{passStructural, passTextual} {
		m.removed.WithLabelValues(p)
	}
	return m
}
