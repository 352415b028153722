package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"
)

// Sync-engine counters. Instruments are created lazily so they bind to
// whichever meter provider Init installed.
var (
	metricsOnce sync.Once

	snapshotsApplied metric.Int64Counter
	mergesApplied    metric.Int64Counter
	writesFlushed    metric.Int64Counter
	writeFailures    metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		m := Meter("")
		snapshotsApplied, _ = m.Int64Counter("tally.snapshots.applied",
			metric.WithDescription("Inbound store snapshots reconciled into local state"))
		mergesApplied, _ = m.Int64Counter("tally.merges.applied",
			metric.WithDescription("Template-to-instance structural merges performed"))
		writesFlushed, _ = m.Int64Counter("tally.writes.flushed",
			metric.WithDescription("Document writes flushed to the store"))
		writeFailures, _ = m.Int64Counter("tally.writes.failed",
			metric.WithDescription("Document writes that returned an error"))
	})
}

// CountSnapshot records one reconciled inbound snapshot.
func CountSnapshot(ctx context.Context) {
	initMetrics()
	snapshotsApplied.Add(ctx, 1)
}

// CountMerge records one structural merge.
func CountMerge(ctx context.Context) {
	initMetrics()
	mergesApplied.Add(ctx, 1)
}

// CountFlush records one completed store write.
func CountFlush(ctx context.Context) {
	initMetrics()
	writesFlushed.Add(ctx, 1)
}

// CountWriteFailure records one failed store write.
func CountWriteFailure(ctx context.Context) {
	initMetrics()
	writeFailures.Add(ctx, 1)
}
