package pipeline

import "context"

// Loader reads one input resource into memory. The first stage of every
// pipeline; its output feeds the first Op (or the Writer if there are no ops).
//
// Construct one with Load for the plain shape or LoadWithRecord when the
// loader wants to add values to the item's run record.
type Loader[T any] interface {
	Load(ctx context.Context, inpath string, rec *Record) (T, error)
}

// Op transforms one in-memory item. Ops are applied in order between the
// Loader and the Writer.
//
// Construct one with Transform for the plain shape, TransformWithRecord for
// the record-aware shape, or RecordValue to record a computed metric without
// modifying the item.
type Op[T any] interface {
	Apply(ctx context.Context, item T, inpath string, rec *Record) (T, error)
}

// Writer persists one processed item to its output path.
//
// Writers are expected to create missing output directories and to write
// atomically (write to a temporary location, then rename) so that an
// interrupted run never leaves a partial file at the final path.
//
// Construct one with Write or WriteWithRecord.
type Writer[T any] interface {
	Write(ctx context.Context, item T, outpath, inpath string, rec *Record) error
}

type plainLoader[T any] struct {
	f func(ctx context.Context, inpath string) (T, error)
}

func (l plainLoader[T]) Load(ctx context.Context, inpath string, _ *Record) (T, error) {
	return l.f(ctx, inpath)
}

// Load adapts a plain load function into a Loader.
func Load[T any](f func(ctx context.Context, inpath string) (T, error)) Loader[T] {
	return plainLoader[T]{f: f}
}

type recordLoader[T any] struct {
	f func(ctx context.Context, inpath string, rec *Record) (T, error)
}

func (l recordLoader[T]) Load(ctx context.Context, inpath string, rec *Record) (T, error) {
	return l.f(ctx, inpath, rec)
}

// LoadWithRecord adapts a record-aware load function into a Loader. The
// function receives the item's run record and may add arbitrary keys to it
// with Record.Set.
func LoadWithRecord[T any](f func(ctx context.Context, inpath string, rec *Record) (T, error)) Loader[T] {
	return recordLoader[T]{f: f}
}

type plainOp[T any] struct {
	f func(ctx context.Context, item T) (T, error)
}

func (o plainOp[T]) Apply(ctx context.Context, item T, _ string, _ *Record) (T, error) {
	return o.f(ctx, item)
}

// Transform adapts a plain transform function into an Op.
func Transform[T any](f func(ctx context.Context, item T) (T, error)) Op[T] {
	return plainOp[T]{f: f}
}

type recordOp[T any] struct {
	f func(ctx context.Context, item T, inpath string, rec *Record) (T, error)
}

func (o recordOp[T]) Apply(ctx context.Context, item T, inpath string, rec *Record) (T, error) {
	return o.f(ctx, item, inpath, rec)
}

// TransformWithRecord adapts a record-aware transform function into an Op.
// The function additionally receives the input path and the item's run
// record, so that it can add arbitrary keys to the run report.
func TransformWithRecord[T any](f func(ctx context.Context, item T, inpath string, rec *Record) (T, error)) Op[T] {
	return recordOp[T]{f: f}
}

// RecordValue wraps a metric function into an Op that stores f(item) on the
// item's run record under key and passes the item through unchanged. The
// recorded value becomes a column of the run report.
func RecordValue[T any](key string, f func(item T) any) Op[T] {
	return TransformWithRecord(func(_ context.Context, item T, _ string, rec *Record) (T, error) {
		rec.Set(key, f(item))
		return item, nil
	})
}

type plainWriter[T any] struct {
	f func(ctx context.Context, item T, outpath string) error
}

func (w plainWriter[T]) Write(ctx context.Context, item T, outpath, _ string, _ *Record) error {
	return w.f(ctx, item, outpath)
}

// Write adapts a plain write function into a Writer.
func Write[T any](f func(ctx context.Context, item T, outpath string) error) Writer[T] {
	return plainWriter[T]{f: f}
}

type recordWriter[T any] struct {
	f func(ctx context.Context, item T, outpath, inpath string, rec *Record) error
}

func (w recordWriter[T]) Write(ctx context.Context, item T, outpath, inpath string, rec *Record) error {
	return w.f(ctx, item, outpath, inpath, rec)
}

// WriteWithRecord adapts a record-aware write function into a Writer.
func WriteWithRecord[T any](f func(ctx context.Context, item T, outpath, inpath string, rec *Record) error) Writer[T] {
	return recordWriter[T]{f: f}
}
