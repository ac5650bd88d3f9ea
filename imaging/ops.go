package imaging

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/ShopRunner/wildebeest/pipeline"
)

// Resize returns an op that resizes images to exactly width x height pixels.
func Resize(width, height int) pipeline.Op[image.Image] {
	return pipeline.Transform(func(_ context.Context, img image.Image) (image.Image, error) {
		if width < 1 || height < 1 {
			return nil, fmt.Errorf("resize dimensions must be positive, got %dx%d", width, height)
		}
		return resizeTo(img, width, height), nil
	})
}

// ResizeMinDim returns an op that resizes images so that the smaller spatial
// dimension equals minDim, preserving the aspect ratio as closely as
// possible.
func ResizeMinDim(minDim int) pipeline.Op[image.Image] {
	return pipeline.Transform(func(_ context.Context, img image.Image) (image.Image, error) {
		if minDim < 1 {
			return nil, fmt.Errorf("minDim must be positive, got %d", minDim)
		}
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w <= h {
			return resizeTo(img, minDim, (h*minDim+w/2)/w), nil
		}
		return resizeTo(img, (w*minDim+h/2)/h, minDim), nil
	})
}

// CenterCrop returns an op that crops a centered box whose sides are factor
// times the image's. A factor of 1 keeps the full image; 0.4 keeps a box of
// 0.4*width by 0.4*height.
func CenterCrop(factor float64) pipeline.Op[image.Image] {
	return pipeline.Transform(func(_ context.Context, img image.Image) (image.Image, error) {
		if factor <= 0 || factor > 1 {
			return nil, fmt.Errorf("crop factor must be in (0, 1], got %v", factor)
		}
		b := img.Bounds()
		cw := int(float64(b.Dx()) * factor)
		ch := int(float64(b.Dy()) * factor)
		x0 := b.Min.X + (b.Dx()-cw)/2
		y0 := b.Min.Y + (b.Dy()-ch)/2

		dst := image.NewRGBA(image.Rect(0, 0, cw, ch))
		draw.Draw(dst, dst.Bounds(), img, image.Pt(x0, y0), draw.Src)
		return dst, nil
	})
}

// Grayscale returns an op that converts images to 8-bit grayscale.
func Grayscale() pipeline.Op[image.Image] {
	return pipeline.Transform(func(_ context.Context, img image.Image) (image.Image, error) {
		return toGray(img), nil
	})
}

// MeanBrightness is the mean pixel value of the image after conversion to
// grayscale, on a 0-255 scale.
func MeanBrightness(img image.Image) float64 {
	g := toGray(img)
	b := g.Bounds()
	if b.Empty() {
		return 0
	}

	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+b.Dx()]
		for _, v := range row {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(b.Dx()*b.Dy())
}

// DHash computes the difference hash of the image. With sqrtHashSize 8 the
// hash is 64 bits, and two images are typically near-duplicates if and only
// if the Hamming distance between their hashes is below about 10, with some
// robustness to resizing and JPEG artifacts.
func DHash(img image.Image, sqrtHashSize int) uint64 {
	g := toGray(img)
	small := image.NewGray(image.Rect(0, 0, sqrtHashSize+1, sqrtHashSize))
	draw.BiLinear.Scale(small, small.Bounds(), g, g.Bounds(), draw.Src, nil)

	var hash uint64
	for y := 0; y < sqrtHashSize; y++ {
		for x := 0; x < sqrtHashSize; x++ {
			if small.GrayAt(x+1, y).Y > small.GrayAt(x, y).Y {
				hash |= 1 << uint(y*sqrtHashSize+x)
			}
		}
	}
	return hash
}

// IsGrayscale reports whether the image is stored in a grayscale format.
func IsGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// RecordMeanBrightness returns an op that records each image's mean
// brightness on its report row under "mean_brightness".
func RecordMeanBrightness() pipeline.Op[image.Image] {
	return pipeline.RecordValue("mean_brightness", func(img image.Image) any {
		return MeanBrightness(img)
	})
}

// RecordDHash returns an op that records each image's 64-bit difference
// hash under "dhash".
func RecordDHash() pipeline.Op[image.Image] {
	return pipeline.RecordValue("dhash", func(img image.Image) any {
		return DHash(img, 8)
	})
}

// RecordIsGrayscale returns an op that records whether each image is
// grayscale under "is_grayscale".
func RecordIsGrayscale() pipeline.Op[image.Image] {
	return pipeline.RecordValue("is_grayscale", func(img image.Image) any {
		return IsGrayscale(img)
	})
}

func resizeTo(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
