package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubsync",
			Name:      "sync_runs_total",
			Help:      "Refresh calls by outcome (synced, skipped, local_only, failed).",
		},
		[]string{"collection", "outcome"},
	)

	syncDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clubsync",
			Name:      "sync_deleted_records_total",
			Help:      "Records dropped locally because the remote no longer has them.",
		},
		[]string{"collection"},
	)

	cacheRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clubsync",
			Name:      "cache_records",
			Help:      "Records in the collection after the last sync pass.",
		},
		[]string{"collection"},
	)
)
