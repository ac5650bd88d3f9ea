package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ShopRunner/wildebeest/pipeline"
)

func uniformImage(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(x * 255 / (w - 1))
			img.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestWriteAndFromDiskRoundTrip(t *testing.T) {
	ctx := context.Background()
	img := gradientImage(32, 16)
	// A nested path exercises output directory creation.
	outpath := filepath.Join(t.TempDir(), "a", "b", "out.png")

	if err := Write(ctx, img, outpath); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := FromDisk(ctx, outpath)
	if err != nil {
		t.Fatalf("FromDisk() failed: %v", err)
	}

	if got.Bounds() != img.Bounds() {
		t.Fatalf("bounds = %v, want %v", got.Bounds(), img.Bounds())
	}
	// PNG is lossless, so every pixel must survive the round trip.
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			wr, wg, wb, wa := img.At(x, y).RGBA()
			gr, gg, gb, ga := got.At(x, y).RGBA()
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got.At(x, y), img.At(x, y))
			}
		}
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	if err := Write(context.Background(), uniformImage(4, 4, 10), filepath.Join(dir, "out.png")); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.png" {
		t.Errorf("directory contains %v, want only out.png", entries)
	}
}

func TestWriteRejectsUnknownExtension(t *testing.T) {
	err := Write(context.Background(), uniformImage(4, 4, 10), filepath.Join(t.TempDir(), "out.tiff"))
	if err == nil {
		t.Fatal("Write() accepted an unsupported extension")
	}
}

func TestFromDiskErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := FromDisk(ctx, filepath.Join(t.TempDir(), "missing.png")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want os.ErrNotExist", err)
	}

	notAnImage := filepath.Join(t.TempDir(), "bogus.png")
	if err := os.WriteFile(notAnImage, []byte("not image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := FromDisk(ctx, notAnImage); !errors.Is(err, ErrUndecodable) {
		t.Errorf("undecodable file error = %v, want ErrUndecodable", err)
	}
}

func TestFromSourceDecodesFetchedBytes(t *testing.T) {
	ctx := context.Background()
	img := gradientImage(16, 8)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	objects := map[string][]byte{"images/a.png": buf.Bytes()}
	load := FromSource(func(_ context.Context, key string) ([]byte, error) {
		data, ok := objects[key]
		if !ok {
			return nil, os.ErrNotExist
		}
		return data, nil
	})

	got, err := load(ctx, "images/a.png")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Bounds() != img.Bounds() {
		t.Errorf("bounds = %v, want %v", got.Bounds(), img.Bounds())
	}

	if _, err := load(ctx, "images/missing.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing key error = %v, want os.ErrNotExist", err)
	}

	objects["images/bogus.png"] = []byte("not image bytes")
	if _, err := load(ctx, "images/bogus.png"); !errors.Is(err, ErrUndecodable) {
		t.Errorf("undecodable bytes error = %v, want ErrUndecodable", err)
	}
}

func TestResizeOps(t *testing.T) {
	ctx := context.Background()
	src := gradientImage(100, 50)

	tests := []struct {
		name  string
		apply func() (image.Image, error)
		wantW int
		wantH int
	}{
		{
			name: "exact shape",
			apply: func() (image.Image, error) {
				return applyOp(ctx, Resize(224, 224), src)
			},
			wantW: 224, wantH: 224,
		},
		{
			name: "min dim on landscape",
			apply: func() (image.Image, error) {
				return applyOp(ctx, ResizeMinDim(25), src)
			},
			wantW: 50, wantH: 25,
		},
		{
			name: "min dim on portrait",
			apply: func() (image.Image, error) {
				return applyOp(ctx, ResizeMinDim(25), gradientImage(50, 100))
			},
			wantW: 25, wantH: 50,
		},
		{
			name: "center crop",
			apply: func() (image.Image, error) {
				return applyOp(ctx, CenterCrop(0.5), gradientImage(100, 80))
			},
			wantW: 50, wantH: 40,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.apply()
			if err != nil {
				t.Fatalf("op failed: %v", err)
			}
			b := got.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("result is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestResizeRejectsBadDimensions(t *testing.T) {
	if _, err := applyOp(context.Background(), Resize(0, 10), gradientImage(4, 4)); err == nil {
		t.Error("Resize(0, 10) did not fail")
	}
	if _, err := applyOp(context.Background(), CenterCrop(1.5), gradientImage(4, 4)); err == nil {
		t.Error("CenterCrop(1.5) did not fail")
	}
}

func TestMeanBrightness(t *testing.T) {
	if got := MeanBrightness(uniformImage(10, 10, 100)); got < 99 || got > 101 {
		t.Errorf("MeanBrightness(uniform 100) = %v, want ~100", got)
	}
	if got := MeanBrightness(uniformImage(10, 10, 0)); got != 0 {
		t.Errorf("MeanBrightness(black) = %v, want 0", got)
	}
}

func TestDHash(t *testing.T) {
	if got := DHash(uniformImage(64, 64, 128), 8); got != 0 {
		t.Errorf("DHash(uniform) = %#x, want 0", got)
	}
	// Brightness strictly increases left to right, so every adjacent-column
	// comparison is true.
	if got := DHash(gradientImage(64, 64), 8); got != ^uint64(0) {
		t.Errorf("DHash(gradient) = %#x, want all bits set", got)
	}

	a := DHash(gradientImage(64, 64), 8)
	b := DHash(gradientImage(128, 128), 8)
	if a != b {
		t.Errorf("resized duplicates hash to %#x and %#x, want equal", a, b)
	}
}

func TestIsGrayscale(t *testing.T) {
	if IsGrayscale(uniformImage(4, 4, 7)) {
		t.Error("RGBA image reported as grayscale")
	}
	if !IsGrayscale(image.NewGray(image.Rect(0, 0, 4, 4))) {
		t.Error("Gray image not reported as grayscale")
	}
}

// applyOp invokes a single op directly, outside any run.
func applyOp(ctx context.Context, op pipeline.Op[image.Image], img image.Image) (image.Image, error) {
	return op.Apply(ctx, img, "", &pipeline.Record{})
}
