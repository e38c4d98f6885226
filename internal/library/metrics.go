// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import "github.com/prometheus/client_golang/prometheus"

var (
	itemsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidshelf_items_created_total",
		Help: "Items inserted by the registry",
	})

	// itemInsertRaces counts conditional inserts that lost to a concurrent writer.
	itemInsertRaces = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidshelf_item_insert_races_total",
		Help: "Item inserts that found the row already created by another writer",
	})

	itemDedupAnomalies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidshelf_item_dedup_anomalies_total",
		Help: "Lookups that found more than one item for a (source kind, external id)",
	})

	// collectionConflicts counts compare-and-set failures, per operation.
	collectionConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidshelf_collection_version_conflicts_total",
		Help: "Collection membership writes rejected by the version check",
	}, []string{"operation"})
)

// Collectors returns the package metrics for registration with a registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{itemsCreated, itemInsertRaces, itemDedupAnomalies, collectionConflicts}
}
