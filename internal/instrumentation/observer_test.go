package instrumentation

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/teemow/crmgate/internal/clock"
	"github.com/teemow/crmgate/internal/telemetry"
)

func TestTelemetryObserver_RecordsLifecycle(t *testing.T) {
	metrics, reader := newTestMetrics(t, false)
	logger, buf := newBufferLogger(slog.LevelInfo)

	fake := clock.NewFake(time.Unix(1700000000, 0))
	rec := telemetry.NewRecorder(
		telemetry.WithClock(fake),
		telemetry.WithObserver(NewTelemetryObserver(metrics, NewAuditLogger(logger))),
	)

	ok := rec.StartOperation("list-deals", nil)
	failed := rec.StartOperation("get-deal", nil)
	rec.StartOperation("get-deal", nil) // still in flight
	fake.Advance(30 * time.Millisecond)
	rec.EndOperation(ok, nil)
	rec.FailOperation(failed, errors.New("not found"), nil)

	rm := collect(t, reader)

	active := sumPoints(t, rm, "crm_active_operations", attrOperation)
	if active["list-deals"] != 0 || active["get-deal"] != 1 {
		t.Errorf("unexpected active gauge: %v", active)
	}

	byStatus := sumPoints(t, rm, "crm_operations_total", attrStatus)
	if byStatus[StatusSuccess] != 1 || byStatus[StatusError] != 1 {
		t.Errorf("unexpected operation counts: %v", byStatus)
	}

	if buf.Len() == 0 {
		t.Error("expected audit entries")
	}
}

func TestTelemetryObserver_NilDependencies(t *testing.T) {
	obs := NewTelemetryObserver(nil, nil)
	m := telemetry.Metric{Operation: "list-deals", Success: true}

	// Should not panic
	obs.OperationStarted(m)
	obs.OperationFinished(m)
}
