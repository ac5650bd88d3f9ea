package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// runReportColumns are the canonical leading columns of every run report.
// Extra columns contributed by record-aware stages follow in encounter order.
var runReportColumns = []string{"outpath", "skipped", "error", "time_finished"}

// RunReport is the table of per-item outcomes for one Run invocation,
// indexed by input path. It contains exactly one row per distinct input path
// and is fully rebuilt by every Run call.
//
// Row order follows submission order of the input paths; completion order
// across items is unspecified, so consumers that care about a different
// ordering must sort explicitly.
type RunReport struct {
	order        []string
	records      map[string]*Record
	extraColumns []string
}

// Len returns the number of rows.
func (r *RunReport) Len() int {
	return len(r.order)
}

// Paths returns the report's input paths.
func (r *RunReport) Paths() []string {
	paths := make([]string, len(r.order))
	copy(paths, r.order)
	return paths
}

// Record returns the row for the given input path.
func (r *RunReport) Record(inpath string) (*Record, bool) {
	rec, ok := r.records[inpath]
	return rec, ok
}

// Columns returns the report's column names: the canonical columns first,
// then any extra columns in the order they were first recorded.
func (r *RunReport) Columns() []string {
	cols := make([]string, 0, len(runReportColumns)+len(r.extraColumns))
	cols = append(cols, runReportColumns...)
	cols = append(cols, r.extraColumns...)
	return cols
}

// WriteCSV renders the report as CSV with an "inpath" column followed by
// Columns(). Rows missing an extra column render it empty.
func (r *RunReport) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append([]string{"inpath"}, r.Columns()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, inpath := range r.order {
		rec := r.records[inpath]

		errStr := ""
		if rec.Err != nil {
			errStr = rec.Err.Error()
		}
		row := []string{
			inpath,
			rec.Outpath,
			fmt.Sprintf("%t", rec.Skipped),
			errStr,
			rec.TimeFinished.Format(time.RFC3339Nano),
		}
		for _, col := range r.extraColumns {
			v, ok := rec.extra[col]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprint(v))
		}

		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
