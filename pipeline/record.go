package pipeline

import (
	"sync"
	"time"
)

// Record holds the outcome of processing one input path. Exactly one Record
// exists per distinct input path of a run.
//
// During a run a Record is written only by the worker goroutine that owns the
// item, so stage functions may use Set without further synchronization.
type Record struct {
	// Outpath is the output path produced by the run's PathFunc. It is set
	// before any stage runs, so the report shows the intended destination
	// even for items that later fail. Empty when the run has no PathFunc.
	Outpath string

	// Skipped is true when the skip predicate matched and no stage ran.
	Skipped bool

	// Err is the error the item's processing ended with, whether or not it
	// was within the run's catch policy. Nil on success and on skip.
	Err error

	// TimeFinished is the moment processing of the item ended. It is set on
	// every exit path: success, skip, caught error, and uncaught error.
	TimeFinished time.Time

	log       *runLog
	extraKeys []string
	extra     map[string]any
}

// Set stores an extra key/value pair on the record. The key becomes a column
// of the run report, ordered after the canonical columns by first encounter
// across the whole run.
func (r *Record) Set(key string, value any) {
	if r.extra == nil {
		r.extra = make(map[string]any)
	}
	if _, ok := r.extra[key]; !ok {
		r.extraKeys = append(r.extraKeys, key)
		if r.log != nil {
			r.log.noteColumn(key)
		}
	}
	r.extra[key] = value
}

// Value returns the extra value stored under key, if any.
func (r *Record) Value(key string) (any, bool) {
	v, ok := r.extra[key]
	return v, ok
}

// ExtraKeys returns the record's extra keys in the order they were first set.
func (r *Record) ExtraKeys() []string {
	keys := make([]string, len(r.extraKeys))
	copy(keys, r.extraKeys)
	return keys
}

// runLog is the per-run accumulator behind the run report. It is created
// fresh for every Run call and owned by the orchestrator, so no state leaks
// across runs.
//
// Workers write to disjoint records, so the mutex only guards the map itself
// and the shared column/failure bookkeeping.
type runLog struct {
	mu       sync.Mutex
	order    []string
	records  map[string]*Record
	columns  []string
	seen     map[string]struct{}
	failures map[string]error
}

func newRunLog() *runLog {
	return &runLog{
		records: make(map[string]*Record),
		seen:    make(map[string]struct{}),
	}
}

// open returns the record for inpath, creating it on first call. Duplicate
// input paths collapse onto one record.
func (l *runLog) open(inpath string) *Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[inpath]; ok {
		return rec
	}
	rec := &Record{log: l}
	l.records[inpath] = rec
	l.order = append(l.order, inpath)
	return rec
}

// noteColumn registers an extra report column the first time any record
// sets it.
func (l *runLog) noteColumn(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return
	}
	l.seen[key] = struct{}{}
	l.columns = append(l.columns, key)
}

// fail marks inpath as having ended with an error outside the run's catch
// policy.
func (l *runLog) fail(inpath string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures == nil {
		l.failures = make(map[string]error)
	}
	l.failures[inpath] = err
}

// paths returns the distinct input paths in submission order.
func (l *runLog) paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	order := make([]string, len(l.order))
	copy(order, l.order)
	return order
}

// buildReport converts the accumulated records into an immutable RunReport.
// Called once, after every worker has finished.
func (l *runLog) buildReport() *RunReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &RunReport{
		order:        l.order,
		records:      l.records,
		extraColumns: l.columns,
	}
}

// processingError returns the run-level error for uncaught item failures,
// or nil if every item succeeded, skipped, or had its error caught.
func (l *runLog) processingError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.failures) == 0 {
		return nil
	}
	return &ProcessingError{Failures: l.failures}
}
