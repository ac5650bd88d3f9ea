// Command download bulk-fetches images from URLs, local directories, or a
// Kafka topic of input paths, optionally resizes them and records image
// stats, and writes the outputs plus a run report.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ShopRunner/wildebeest/fetch"
	"github.com/ShopRunner/wildebeest/files"
	"github.com/ShopRunner/wildebeest/imaging"
	"github.com/ShopRunner/wildebeest/internal/env"
	"github.com/ShopRunner/wildebeest/internal/reportdb"
	"github.com/ShopRunner/wildebeest/internal/storage"
	"github.com/ShopRunner/wildebeest/paths"
	"github.com/ShopRunner/wildebeest/pipeline"
	"github.com/ShopRunner/wildebeest/pkg/graceful"
	"github.com/ShopRunner/wildebeest/pkg/source"
)

func main() {
	urlFile := flag.String("urls", "", "file containing one input URL or path per line")
	indir := flag.String("indir", "", "directory to scan for input images")
	kafkaTopic := flag.String("kafka", "", "Kafka topic to read input paths from (requires KAFKA_BROKER and KAFKA_GROUP_ID)")
	kafkaMax := flag.Int("max", 0, "maximum number of paths to take from Kafka (0 = until the topic closes)")
	outdir := flag.String("out", "downloaded", "output directory (or object key prefix with -bucket)")
	ext := flag.String("ext", "png", "output image format")
	jobs := flag.Int("jobs", 8, "number of worker threads")
	skipExisting := flag.Bool("skip-existing", false, "skip inputs whose output already exists")
	resizeMin := flag.Int("resize", 0, "resize so the smaller dimension equals this many pixels (0 keeps the original size)")
	stats := flag.Bool("stats", false, "record mean brightness and dhash report columns")
	strict := flag.Bool("strict", false, "fail the run on any item error instead of recording it")
	reportPath := flag.String("report", "run_report.csv", "where to write the run report CSV")
	bucket := flag.String("bucket", "", "write outputs to this S3/MinIO bucket instead of the local filesystem")
	inBucket := flag.String("in-bucket", "", "treat input paths as object keys in this S3/MinIO bucket")
	flag.Parse()

	env.LoadEnv()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	inpaths, err := gatherInpaths(ctx, *urlFile, *indir, *kafkaTopic, *kafkaMax)
	if err != nil {
		log.Fatalf("Could not gather input paths: %v", err)
	}
	if len(inpaths) == 0 {
		log.Fatal("No input paths; pass -urls, -indir, or -kafka")
	}
	log.Printf("Processing %d inputs with %d workers", len(inpaths), *jobs)

	var ops []pipeline.Op[image.Image]
	if *resizeMin > 0 {
		ops = append(ops, imaging.ResizeMinDim(*resizeMin))
	}
	if *stats {
		ops = append(ops, imaging.RecordMeanBrightness(), imaging.RecordDHash())
	}

	var store *storage.S3Store
	if *bucket != "" || *inBucket != "" {
		store, err = storage.NewS3Store()
		if err != nil {
			log.Fatalf("Could not connect to object store: %v", err)
		}
	}

	load := pipeline.Load(loadAny)
	if *inBucket != "" {
		load = pipeline.Load(imaging.FromSource(store.Loader(*inBucket)))
	}

	write, skip, err := buildSink(ctx, store, *bucket, *skipExisting)
	if err != nil {
		log.Fatalf("Could not set up output sink: %v", err)
	}

	pathFunc := paths.JoinOutdirWithExt(*outdir, *ext)
	if *bucket != "" {
		// Object keys come from arbitrary URLs, so normalize them.
		base := pathFunc
		pathFunc = func(inpath string) string { return storage.SanitizeKey(base(inpath)) }
	}

	opts := pipeline.RunOptions{
		PathFunc: pathFunc,
		NJobs:    *jobs,
		Skip:     skip,
	}
	if !*strict {
		opts.Catch = pipeline.CatchOnly(fetch.ErrDeclined, imaging.ErrUndecodable)
	}

	start := time.Now()
	p := pipeline.New(load, write, ops...)
	report, runErr := p.Run(ctx, inpaths, opts)
	if report == nil {
		log.Fatalf("Run failed before any work was dispatched: %v", runErr)
	}

	if err := saveReport(ctx, *reportPath, report); err != nil {
		log.Fatalf("Could not save run report: %v", err)
	}
	logSummary(report, time.Since(start))

	var procErr *pipeline.ProcessingError
	if errors.As(runErr, &procErr) {
		log.Fatalf("Run finished with failures: %v", procErr)
	}
	if runErr != nil {
		log.Fatalf("Run failed: %v", runErr)
	}
}

// loadAny reads URLs over HTTP and anything else from the local filesystem.
func loadAny(ctx context.Context, inpath string) (image.Image, error) {
	if strings.Contains(inpath, "://") {
		return imaging.Download(ctx, inpath)
	}
	return imaging.FromDisk(ctx, inpath)
}

func gatherInpaths(ctx context.Context, urlFile, indir, kafkaTopic string, kafkaMax int) ([]string, error) {
	switch {
	case urlFile != "":
		return readLines(urlFile)
	case indir != "":
		return files.FindImages(indir)
	case kafkaTopic != "":
		broker := env.MustGetEnv("KAFKA_BROKER")
		groupID := env.MustGetEnv("KAFKA_GROUP_ID")
		src := source.NewKafkaSource(kafkaTopic, groupID, broker)
		src.Start(ctx)
		inpaths := source.Collect(ctx, src.Paths(), kafkaMax)
		src.Stop()
		return inpaths, nil
	}
	return nil, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// buildSink returns the write stage and skip predicate for either local
// files or an object store bucket.
func buildSink(ctx context.Context, store *storage.S3Store, bucket string, skipExisting bool) (pipeline.Writer[image.Image], pipeline.SkipFunc, error) {
	if bucket == "" {
		var skip pipeline.SkipFunc
		if skipExisting {
			skip = pipeline.SkipExistingFiles
		}
		return pipeline.Write(imaging.Write), skip, nil
	}

	if err := store.EnsureBucket(ctx, bucket, ""); err != nil {
		return nil, nil, err
	}

	put := store.Writer(bucket, "image/png")
	write := pipeline.Write(func(ctx context.Context, img image.Image, key string) error {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("encoding %s: %w", key, err)
		}
		return put(ctx, buf.Bytes(), key)
	})

	var skip pipeline.SkipFunc
	if skipExisting {
		skip = store.SkipExisting(bucket)
	}
	return write, skip, nil
}

func saveReport(ctx context.Context, reportPath string, report *pipeline.RunReport) error {
	f, err := os.Create(reportPath)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Run report written to %s", reportPath)

	databaseURL := env.GetEnv("DATABASE_URL", "")
	if databaseURL == "" {
		return nil
	}
	db, err := reportdb.New(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runID := time.Now().UTC().Format("20060102T150405Z")
	if err := db.Save(ctx, runID, report); err != nil {
		return err
	}
	log.Printf("Run report persisted to Postgres as run %s", runID)
	return nil
}

func logSummary(report *pipeline.RunReport, elapsed time.Duration) {
	var skipped, failed int
	for _, inpath := range report.Paths() {
		rec, _ := report.Record(inpath)
		if rec.Skipped {
			skipped++
		}
		if rec.Err != nil {
			failed++
		}
	}
	processed := report.Len() - skipped - failed
	log.Printf("Done in %s: %d processed, %d skipped, %d failed", elapsed.Round(time.Millisecond), processed, skipped, failed)
}
