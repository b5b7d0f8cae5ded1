package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel = "kind"
)

var (
	treeCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_trees_total",
		Help: "The total number of tree identities created.",
	}, []string{kindLabel})
)

func instrumentCountTree(kind TreeKind) {
	treeCountTotal.
		With(prometheus.Labels{kindLabel: string(kind)}).
		Inc()
}
