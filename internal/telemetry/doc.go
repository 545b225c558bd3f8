// Package telemetry records per-operation timing and outcome.
//
// A Recorder keeps three pieces of state behind one mutex:
//   - the active set, keyed by correlation id, of operations that have
//     started but not finished;
//   - a fixed-capacity ring of finished metrics (FIFO eviction);
//   - running aggregates since process start, with a per-operation mean
//     updated incrementally.
//
// Stats reports the running aggregates. WindowStats recomputes the same view
// from the retained history. Neither performs I/O while holding the lock, and
// observers are notified only after it is released.
//
// # Example
//
//	rec := telemetry.NewRecorder(telemetry.WithMaxMetrics(500))
//	id := rec.StartOperation("list-deals", nil)
//	if err := call(); err != nil {
//		rec.FailOperation(id, err, nil)
//	} else {
//		rec.EndOperation(id, nil)
//	}
//
// The active set has no timeout. Operations whose handler never returns stay
// in it; ActiveCount exposes its size so callers can alert on growth.
package telemetry
