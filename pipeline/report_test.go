package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestWriteCSV(t *testing.T) {
	brightness := RecordValue("mean_brightness", func(item string) any { return 42.5 })
	failing := Transform(func(_ context.Context, item string) (string, error) {
		if item == "item:b" {
			return item, errors.New("boom")
		}
		return item, nil
	})
	stages := &countingStages{}
	p := New(stages.loader(), nil, brightness, failing)

	report, err := p.Run(context.Background(), []string{"a", "b"}, RunOptions{
		NJobs: 1,
		Catch: CatchAll,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	var buf strings.Builder
	if err := report.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("CSV has %d lines, want header plus 2 rows:\n%s", len(lines), buf.String())
	}
	if lines[0] != "inpath,outpath,skipped,error,time_finished,mean_brightness" {
		t.Errorf("CSV header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "a,,false,,") {
		t.Errorf("row for a = %q", lines[1])
	}
	if !strings.Contains(lines[2], "boom") {
		t.Errorf("row for b does not carry its error: %q", lines[2])
	}
	if !strings.HasSuffix(lines[1], ",42.5") {
		t.Errorf("row for a does not end with the recorded metric: %q", lines[1])
	}
}

func TestWriteCSVFillsMissingExtraColumns(t *testing.T) {
	// Only even items record the metric, so odd rows must render it empty.
	sometimes := TransformWithRecord(func(_ context.Context, item, inpath string, rec *Record) (string, error) {
		if strings.HasSuffix(inpath, "0") {
			rec.Set("metric", 1)
		}
		return item, nil
	})
	stages := &countingStages{}
	p := New(stages.loader(), nil, sometimes)

	report, err := p.Run(context.Background(), []string{"in-0", "in-1"}, RunOptions{NJobs: 1})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	var buf strings.Builder
	if err := report.WriteCSV(&buf); err != nil {
		t.Fatalf("WriteCSV() failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[1], ",1") {
		t.Errorf("row for in-0 missing metric: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",") {
		t.Errorf("row for in-1 should have an empty metric cell: %q", lines[2])
	}
}

func TestRecordValueOrderIsFirstEncounter(t *testing.T) {
	rl := newRunLog()
	a := rl.open("a")
	b := rl.open("b")

	b.Set("second", 2)
	a.Set("first", 1)
	a.Set("second", 2)

	report := rl.buildReport()
	cols := report.Columns()
	want := []string{"outpath", "skipped", "error", "time_finished", "second", "first"}
	if len(cols) != len(want) {
		t.Fatalf("Columns() = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("Columns() = %v, want %v", cols, want)
		}
	}
}
