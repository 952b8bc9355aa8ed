// Package preprocess turns an uploaded image into the normalized tensor the
// classifier expects: resized to a square, RGB, scaled to [0,1], NHWC with a
// batch dimension of one.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const Channels = 3

// MaxPixels caps the declared dimensions of an upload, same limit as PIL's
// MAX_IMAGE_PIXELS.
const MaxPixels = 89478485

var (
	ErrDecode        = errors.New("cannot decode image")
	ErrImageTooLarge = errors.New("image dimensions too large")
)

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Interpolation maps a config name to a resize function. Unknown names fall
// back to nearest-neighbour.
func Interpolation(name string) resize.InterpolationFunction {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bilinear":
		return resize.Bilinear
	case "bicubic":
		return resize.Bicubic
	case "mitchell":
		return resize.MitchellNetravali
	case "lanczos2":
		return resize.Lanczos2
	case "lanczos3":
		return resize.Lanczos3
	default:
		return resize.NearestNeighbor
	}
}

// Decode reads any format registered with the image package. The header is
// checked against MaxPixels before any pixel data is allocated.
func Decode(r io.Reader) (image.Image, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, format, nil
}

// nearest samples source pixel floor((x+0.5)*scale) on each axis, like PIL's
// NEAREST filter. nfnt's NearestNeighbor widens its kernel on downscale.
func nearest(img image.Image, size int) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Rect, img, img.Bounds(), draw.Src, nil)
	return dst
}

// Normalize resizes img to size x size and returns a (1, size, size, 3) tensor.
func Normalize(img image.Image, size int, interp resize.InterpolationFunction) Tensor {
	var resized image.Image
	if interp == resize.NearestNeighbor {
		resized = nearest(img, size)
	} else {
		resized = resize.Resize(uint(size), uint(size), img, interp)
	}

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	data := make([]float32, width*height*Channels)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			data[i] = float32(c.R) / 255.0
			data[i+1] = float32(c.G) / 255.0
			data[i+2] = float32(c.B) / 255.0
			i += Channels
		}
	}

	return Tensor{
		Shape: []int64{1, int64(height), int64(width), Channels},
		Data:  data,
	}
}

// FromReader decodes and normalizes in one step.
func FromReader(r io.Reader, size int, interp resize.InterpolationFunction) (Tensor, string, error) {
	img, format, err := Decode(r)
	if err != nil {
		return Tensor{}, "", err
	}
	return Normalize(img, size, interp), format, nil
}
