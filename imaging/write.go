package imaging

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
)

// Write encodes img to outpath, choosing the format from the path's
// extension (.png, .jpg/.jpeg, or .bmp; an extensionless path gets PNG).
//
// Missing output directories are created, and the file is written to a
// temporary name in the destination directory and then renamed, so an
// interrupted run never leaves a partial file at the final path.
func Write(_ context.Context, img image.Image, outpath string) error {
	dir := filepath.Dir(outpath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".wildebeest-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, img, filepath.Ext(outpath)); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", outpath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), outpath)
}

func encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(ext) {
	case ".png", "":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, nil)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return fmt.Errorf("unsupported output extension %q", ext)
	}
}
