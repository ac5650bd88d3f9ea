// Package imaging provides image stage functions for pipelines: loaders for
// local files and URLs, transforms such as resizing and cropping, recorded
// metrics, and an atomic image writer.
//
// Images are represented as image.Image throughout, so any op can follow any
// other op.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	// Decoders for the supported input formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/ShopRunner/wildebeest/fetch"
)

// ErrUndecodable marks inputs whose bytes could not be decoded as an image.
var ErrUndecodable = errors.New("image could not be decoded")

// FromDisk loads an image from a local file. It returns an error wrapping
// ErrUndecodable when the file exists but is not a decodable image.
func FromDisk(_ context.Context, path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w: %v", path, ErrUndecodable, err)
	}
	return img, nil
}

// FromSource returns a load function that decodes images fetched through
// get, which maps an input path to raw bytes. It adapts any byte source,
// e.g. an object store loader, into an image loader.
func FromSource(get func(ctx context.Context, inpath string) ([]byte, error)) func(ctx context.Context, inpath string) (image.Image, error) {
	return func(ctx context.Context, inpath string) (image.Image, error) {
		body, err := get(ctx, inpath)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w: %v", inpath, ErrUndecodable, err)
		}
		return img, nil
	}
}

// FromURL returns a load function that downloads an image over HTTP using
// the given fetch client.
func FromURL(client *fetch.Client) func(ctx context.Context, url string) (image.Image, error) {
	return FromSource(client.Get)
}

// Download loads an image from a URL with the default fetch client.
func Download(ctx context.Context, url string) (image.Image, error) {
	return FromURL(fetch.DefaultClient)(ctx, url)
}
