package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportRequestsMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "federation_export_requests", Help: "Export documents served to peers"})
	exportedEntities     = promauto.NewCounter(prometheus.CounterOpts{Name: "federation_exported_entities", Help: "Entities included in served export documents"})
	importPassesMetric   = promauto.NewCounter(prometheus.CounterOpts{Name: "federation_import_passes", Help: "Completed import passes"})
	importFailuresMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "federation_import_failures", Help: "Failed import passes"})
	updateHooksMetric    = promauto.NewCounter(prometheus.CounterOpts{Name: "federation_update_hooks", Help: "Update hooks received from peers"})
)
