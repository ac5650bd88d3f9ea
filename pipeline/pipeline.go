// Package pipeline composes load/transform/write stage functions into a
// single per-item unit of work, fans that unit out across a fixed pool of
// worker goroutines, and aggregates per-item outcomes into a tabular run
// report.
//
// A Pipeline is generic over the item type T. Stage functions come in two
// shapes, selected at construction time: plain (item in, item out) and
// record-aware (additionally receiving the input path and the item's run
// record, so stages can add arbitrary columns to the report).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// PathFunc maps an input path to its output path. It must be deterministic
// and side-effect free.
type PathFunc func(inpath string) string

// SkipFunc decides whether an item should bypass processing entirely, e.g.
// because its output already exists.
type SkipFunc func(inpath, outpath string) bool

// CatchFunc decides whether an error raised by an item's stages is recovered
// from. A caught error is recorded on the item's row and the run continues;
// an uncaught error fails the run for that item. A nil CatchFunc catches
// nothing.
type CatchFunc func(err error) bool

// CatchAll recovers from every stage error.
func CatchAll(error) bool { return true }

// CatchOnly returns a CatchFunc that recovers only from errors matching one
// of the targets per errors.Is.
func CatchOnly(targets ...error) CatchFunc {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// SkipExistingFiles is a SkipFunc that skips items whose output path already
// exists on the local filesystem. Running the same pipeline twice with this
// predicate makes the second run a no-op.
func SkipExistingFiles(_, outpath string) bool {
	_, err := os.Stat(outpath)
	return err == nil
}

// Pipeline is an immutable description of per-item work: one Loader, zero or
// more Ops applied in order, and an optional Writer. A Pipeline may be run
// any number of times; each Run replaces the previous run report.
type Pipeline[T any] struct {
	load  Loader[T]
	ops   []Op[T]
	write Writer[T]

	mu         sync.Mutex
	lastReport *RunReport
}

// New constructs a Pipeline from its stages. write may be nil for pipelines
// that only load and record, e.g. when the ops populate the run report and
// the caller wants nothing else.
func New[T any](load Loader[T], write Writer[T], ops ...Op[T]) *Pipeline[T] {
	return &Pipeline[T]{load: load, ops: ops, write: write}
}

// RunOptions configures one Run invocation.
type RunOptions struct {
	// PathFunc maps each input path to its output path. Required when the
	// pipeline has a Writer or the run has a Skip predicate.
	PathFunc PathFunc

	// NJobs is the number of worker goroutines. Must be at least 1.
	NJobs int

	// Skip, when non-nil, is consulted before any stage runs for an item.
	Skip SkipFunc

	// Catch, when non-nil, selects which stage errors are recovered from.
	Catch CatchFunc
}

// Run processes every input path across NJobs workers and returns the run
// report. Items are independent and may complete in any order; the report
// always contains exactly one row per distinct input path.
//
// When one or more items end with an error outside the catch policy, Run
// returns the fully built report together with a *ProcessingError describing
// the failed paths. Configuration errors are reported before any work is
// dispatched, with a nil report.
//
// ctx is passed through to the stage functions; Run itself blocks until
// every dispatched item has finished.
func (p *Pipeline[T]) Run(ctx context.Context, inpaths []string, opts RunOptions) (*RunReport, error) {
	if err := p.checkRunOptions(opts); err != nil {
		return nil, err
	}

	rl := newRunLog()
	for _, inpath := range inpaths {
		rl.open(inpath)
	}

	type job struct {
		inpath string
		rec    *Record
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < opts.NJobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := p.processOne(ctx, j.inpath, j.rec, opts); err != nil {
					rl.fail(j.inpath, err)
				}
			}
		}()
	}

	for _, inpath := range rl.paths() {
		jobs <- job{inpath: inpath, rec: rl.open(inpath)}
	}
	close(jobs)
	wg.Wait()

	report := rl.buildReport()
	p.mu.Lock()
	p.lastReport = report
	p.mu.Unlock()

	if err := rl.processingError(); err != nil {
		return report, err
	}
	return report, nil
}

// Report returns the report of the most recent Run, or ErrNotRun if the
// pipeline has never been run.
func (p *Pipeline[T]) Report() (*RunReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastReport == nil {
		return nil, ErrNotRun
	}
	return p.lastReport, nil
}

func (p *Pipeline[T]) checkRunOptions(opts RunOptions) error {
	if opts.NJobs < 1 {
		return fmt.Errorf("NJobs must be at least 1, got %d", opts.NJobs)
	}
	if opts.Skip != nil && opts.PathFunc == nil {
		return errors.New("a skip predicate requires a PathFunc")
	}
	if p.write != nil && opts.PathFunc == nil {
		return errors.New("a write stage requires a PathFunc")
	}
	return nil
}

// processOne executes the composed pipeline for a single input path,
// recording the outcome on rec. The returned error is non-nil only when the
// item's error falls outside the run's catch policy.
func (p *Pipeline[T]) processOne(ctx context.Context, inpath string, rec *Record, opts RunOptions) (err error) {
	defer func() {
		rec.TimeFinished = time.Now()
	}()

	var outpath string
	if opts.PathFunc != nil {
		outpath = opts.PathFunc(inpath)
		rec.Outpath = outpath
	}

	// The skip decision strictly precedes every stage function, so
	// record-aware stages never contribute columns to skipped rows.
	if opts.Skip != nil && opts.Skip(inpath, outpath) {
		rec.Skipped = true
		log.Printf("Skipping %s (outpath %s)", inpath, outpath)
		return nil
	}

	err = p.runStages(ctx, inpath, outpath, rec)
	if err == nil {
		return nil
	}

	rec.Err = err
	if opts.Catch != nil && opts.Catch(err) {
		log.Printf("Error processing %s: %v", inpath, err)
		return nil
	}
	return err
}

func (p *Pipeline[T]) runStages(ctx context.Context, inpath, outpath string, rec *Record) error {
	item, err := p.load.Load(ctx, inpath, rec)
	if err != nil {
		return err
	}
	for _, op := range p.ops {
		item, err = op.Apply(ctx, item, inpath, rec)
		if err != nil {
			return err
		}
	}
	if p.write == nil {
		return nil
	}
	return p.write.Write(ctx, item, outpath, inpath, rec)
}
