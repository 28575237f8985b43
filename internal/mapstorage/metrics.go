package mapstorage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapstorage_commits_total",
		Help: "The total number of committed map storage transactions",
	}, []string{"entity"})
	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapstorage_rollbacks_total",
		Help: "The total number of rolled back map storage transactions",
	}, []string{"entity"})
	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapstorage_optimistic_lock_conflicts_total",
		Help: "The total number of commits failed due to concurrent modification",
	}, []string{"entity"})
)
