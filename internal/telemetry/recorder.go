package telemetry

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/teemow/crmgate/internal/clock"
	"github.com/teemow/crmgate/internal/logging"
)

// MetadataSuccess is the metadata key that lets a caller of EndOperation
// record an unsuccessful outcome without an error.
const MetadataSuccess = "success"

// Observer is notified of operation lifecycle events. Callbacks run after the
// recorder's lock is released and receive copies.
type Observer interface {
	OperationStarted(m Metric)
	OperationFinished(m Metric)
}

// Recorder tracks in-flight operations, a bounded history of finished ones and
// running aggregates since process start. It is safe for concurrent use.
type Recorder struct {
	clock         clock.Clock
	ids           clock.IDGenerator
	logger        logging.Logger
	observers     []Observer
	maxMetrics    int
	slowThreshold time.Duration

	mu        sync.Mutex
	active    map[string]*Metric
	history   *ring[Metric]
	total     int64
	succeeded int64
	failed    int64
	perOp     map[string]*OperationStats
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

// WithIDGenerator sets the correlation id suffix source.
func WithIDGenerator(g clock.IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l logging.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithObserver adds a lifecycle observer.
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observers = append(r.observers, o) }
}

// WithMaxMetrics sets the history capacity. Non-positive values keep the default.
func WithMaxMetrics(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.maxMetrics = n
		}
	}
}

// WithSlowThreshold sets the duration above which finished operations are
// logged as slow. Zero disables the warning.
func WithSlowThreshold(d time.Duration) Option {
	return func(r *Recorder) { r.slowThreshold = d }
}

// NewRecorder creates a Recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		clock:         clock.System{},
		ids:           clock.RandomSuffix{},
		logger:        logging.NewSlogAdapter(nil),
		maxMetrics:    DefaultMaxMetrics,
		slowThreshold: DefaultSlowThreshold,
		active:        make(map[string]*Metric),
		perOp:         make(map[string]*OperationStats),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.history = newRing[Metric](r.maxMetrics)
	return r
}

// StartOperation begins tracking an operation and returns its correlation id.
// The id is unique among active operations.
func (r *Recorder) StartOperation(name string, metadata map[string]any) string {
	now := r.clock.Now()
	base := fmt.Sprintf("%s-%d-%s", name, now.UnixMilli(), r.ids.Suffix())

	r.mu.Lock()
	id := base
	for n := 1; r.active[id] != nil; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	m := &Metric{
		CorrelationID: id,
		Operation:     name,
		StartTime:     now,
		Metadata:      maps.Clone(metadata),
	}
	r.active[id] = m
	snapshot := m.clone()
	r.mu.Unlock()

	for _, o := range r.observers {
		o.OperationStarted(snapshot)
	}
	return id
}

// EndOperation marks an operation successful unless metadata carries
// success=false. Unknown ids are logged and ignored.
func (r *Recorder) EndOperation(correlationID string, metadata map[string]any) {
	success := true
	if v, ok := metadata[MetadataSuccess].(bool); ok {
		success = v
	}
	r.finish(correlationID, success, "", metadata)
}

// FailOperation marks an operation failed with err. Unknown ids are logged
// and ignored.
func (r *Recorder) FailOperation(correlationID string, err error, metadata map[string]any) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	r.finish(correlationID, false, msg, metadata)
}

func (r *Recorder) finish(correlationID string, success bool, errMsg string, metadata map[string]any) {
	now := r.clock.Now()

	r.mu.Lock()
	m, ok := r.active[correlationID]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("operation not found in active set", logging.CorrelationID(correlationID))
		return
	}
	delete(r.active, correlationID)

	m.EndTime = now
	m.Duration = now.Sub(m.StartTime)
	m.Success = success
	m.Error = errMsg
	if len(metadata) > 0 {
		if m.Metadata == nil {
			m.Metadata = make(map[string]any, len(metadata))
		}
		maps.Copy(m.Metadata, metadata)
	}

	r.history.add(*m)
	r.aggregateLocked(*m)
	snapshot := m.clone()
	r.mu.Unlock()

	switch {
	case errMsg != "":
		r.logger.Error("operation failed",
			logging.Operation(snapshot.Operation),
			logging.CorrelationID(snapshot.CorrelationID),
			logging.Duration(snapshot.Duration),
			"error", errMsg)
	case r.slowThreshold > 0 && snapshot.Duration > r.slowThreshold:
		r.logger.Warn("slow operation detected",
			logging.Operation(snapshot.Operation),
			logging.CorrelationID(snapshot.CorrelationID),
			logging.Duration(snapshot.Duration))
	default:
		r.logger.Debug("operation completed",
			logging.Operation(snapshot.Operation),
			logging.CorrelationID(snapshot.CorrelationID),
			logging.Duration(snapshot.Duration))
	}

	for _, o := range r.observers {
		o.OperationFinished(snapshot)
	}
}

// aggregateLocked folds a finished metric into the running totals. The
// per-operation mean uses the incremental update mean += (d - mean) / n.
func (r *Recorder) aggregateLocked(m Metric) {
	r.total++
	if m.Success {
		r.succeeded++
	} else {
		r.failed++
	}

	op, ok := r.perOp[m.Operation]
	if !ok {
		op = &OperationStats{}
		r.perOp[m.Operation] = op
	}
	op.Count++
	if !m.Success {
		op.Failures++
	}
	op.AverageDuration += (durationMillis(m.Duration) - op.AverageDuration) / float64(op.Count)
}

// OperationDuration returns the elapsed time of an active operation, the
// recorded duration of a finished one still in history, or zero.
func (r *Recorder) OperationDuration(correlationID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.active[correlationID]; ok {
		return r.clock.Now().Sub(m.StartTime)
	}
	if m, ok := r.history.findLast(func(m Metric) bool { return m.CorrelationID == correlationID }); ok {
		return m.Duration
	}
	return 0
}

// Stats returns the running aggregates accumulated since the recorder was
// created. Counts are not affected by history eviction.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := make(map[string]OperationStats, len(r.perOp))
	for name, op := range r.perOp {
		ops[name] = *op
	}
	return Stats{
		TotalOperations:      r.total,
		SuccessfulOperations: r.succeeded,
		FailedOperations:     r.failed,
		SuccessRate:          successRate(r.succeeded, r.total),
		ActiveOperations:     len(r.active),
		HistorySize:          r.history.len(),
		OperationStats:       ops,
	}
}

// WindowStats recomputes aggregates from the retained history only.
func (r *Recorder) WindowStats() Stats {
	r.mu.Lock()
	entries := r.history.all()
	active := len(r.active)
	r.mu.Unlock()

	s := Stats{
		ActiveOperations: active,
		HistorySize:      len(entries),
		OperationStats:   make(map[string]OperationStats),
	}
	sums := make(map[string]float64)
	for _, m := range entries {
		s.TotalOperations++
		op := s.OperationStats[m.Operation]
		op.Count++
		if m.Success {
			s.SuccessfulOperations++
		} else {
			s.FailedOperations++
			op.Failures++
		}
		s.OperationStats[m.Operation] = op
		sums[m.Operation] += durationMillis(m.Duration)
	}
	for name, op := range s.OperationStats {
		op.AverageDuration = sums[name] / float64(op.Count)
		s.OperationStats[name] = op
	}
	s.SuccessRate = successRate(s.SuccessfulOperations, s.TotalOperations)
	return s
}

// History returns copies of the retained finished metrics, oldest first.
func (r *Recorder) History() []Metric {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.history.all()
	for i := range entries {
		entries[i] = entries[i].clone()
	}
	return entries
}

// ActiveCount returns the number of in-flight operations.
func (r *Recorder) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// MaxMetrics returns the history capacity.
func (r *Recorder) MaxMetrics() int {
	return r.maxMetrics
}
