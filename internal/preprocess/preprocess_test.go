package preprocess

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func checkShape(t *testing.T, tensor Tensor, size int) {
	t.Helper()
	want := []int64{1, int64(size), int64(size), Channels}
	if len(tensor.Shape) != len(want) {
		t.Fatalf("Shape = %v, expected %v", tensor.Shape, want)
	}
	for i := range want {
		if tensor.Shape[i] != want[i] {
			t.Fatalf("Shape = %v, expected %v", tensor.Shape, want)
		}
	}
	if len(tensor.Data) != size*size*Channels {
		t.Fatalf("len(Data) = %d, expected %d", len(tensor.Data), size*size*Channels)
	}
}

func TestFromReader_SolidGreenPNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(50, 50, color.NRGBA{0, 255, 0, 255})); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	tensor, format, err := FromReader(&buf, 224, resize.NearestNeighbor)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, expected png", format)
	}
	checkShape(t, tensor, 224)

	for i := 0; i < len(tensor.Data); i += Channels {
		r, g, b := tensor.Data[i], tensor.Data[i+1], tensor.Data[i+2]
		if r != 0 || g != 1 || b != 0 {
			t.Fatalf("pixel %d = (%v, %v, %v), expected (0, 1, 0)", i/Channels, r, g, b)
		}
	}
}

func TestNormalize_ShapeAndRange(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		interp resize.InterpolationFunction
	}{
		{"small upscale nearest", 7, 3, resize.NearestNeighbor},
		{"large downscale bilinear", 640, 480, resize.Bilinear},
		{"tall lanczos3", 90, 400, resize.Lanczos3},
		{"exact size bicubic", 224, 224, resize.Bicubic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := Normalize(noise(tt.w, tt.h, 42), 224, tt.interp)
			checkShape(t, tensor, 224)
			for i, v := range tensor.Data {
				if v < 0 || v > 1 {
					t.Fatalf("Data[%d] = %v, outside [0,1]", i, v)
				}
			}
		})
	}
}

func TestNormalize_ChannelOrder(t *testing.T) {
	tensor := Normalize(solid(4, 4, color.NRGBA{255, 0, 51, 255}), 2, resize.NearestNeighbor)
	checkShape(t, tensor, 2)

	want := []float32{1, 0, 0.2}
	for i := 0; i < len(tensor.Data); i += Channels {
		for c := 0; c < Channels; c++ {
			if tensor.Data[i+c] != want[c] {
				t.Fatalf("Data[%d] = %v, expected %v", i+c, tensor.Data[i+c], want[c])
			}
		}
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	img := noise(120, 80, 7)

	a := Normalize(img, 224, resize.Bilinear)
	b := Normalize(img, 224, resize.Bilinear)

	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("Data[%d] differs between runs: %v vs %v", i, a.Data[i], b.Data[i])
		}
	}
}

func TestFromReader_OtherFormats(t *testing.T) {
	img := noise(30, 20, 1)

	var jpg, bm bytes.Buffer
	if err := jpeg.Encode(&jpg, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	if err := bmp.Encode(&bm, img); err != nil {
		t.Fatalf("bmp.Encode: %v", err)
	}

	for format, buf := range map[string]*bytes.Buffer{"jpeg": &jpg, "bmp": &bm} {
		tensor, got, err := FromReader(buf, 224, resize.NearestNeighbor)
		if err != nil {
			t.Fatalf("%s: FromReader: %v", format, err)
		}
		if got != format {
			t.Errorf("format = %q, expected %q", got, format)
		}
		checkShape(t, tensor, 224)
	}
}

func TestFromReader_NotAnImage(t *testing.T) {
	_, _, err := FromReader(bytes.NewReader([]byte("definitely not an image")), 224, resize.NearestNeighbor)
	if err == nil {
		t.Fatal("expected an error for non-image bytes")
	}
	if !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, expected ErrDecode", err)
	}
}

func TestInterpolation(t *testing.T) {
	tests := []struct {
		name string
		want resize.InterpolationFunction
	}{
		{"nearest", resize.NearestNeighbor},
		{"", resize.NearestNeighbor},
		{"unknown", resize.NearestNeighbor},
		{"Bilinear", resize.Bilinear},
		{" bicubic ", resize.Bicubic},
		{"lanczos3", resize.Lanczos3},
	}

	for _, tt := range tests {
		if got := Interpolation(tt.name); got != tt.want {
			t.Errorf("Interpolation(%q) = %v, expected %v", tt.name, got, tt.want)
		}
	}
}

// columns builds a w x h image whose red channel is cols[x] on every row.
func columns(cols []uint8, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(cols), h))
	for y := 0; y < h; y++ {
		for x, v := range cols {
			img.Set(x, y, color.NRGBA{v, 0, 0, 255})
		}
	}
	return img
}

func redRow(tensor Tensor, row int) []uint8 {
	width := int(tensor.Shape[2])
	out := make([]uint8, width)
	for x := 0; x < width; x++ {
		out[x] = uint8(tensor.Data[(row*width+x)*Channels]*255 + 0.5)
	}
	return out
}

func TestNormalize_NearestSampling(t *testing.T) {
	tests := []struct {
		name string
		cols []uint8
		size int
		want []uint8
	}{
		{"downscale 4 to 2", []uint8{0, 80, 160, 240}, 2, []uint8{80, 240}},
		{"downscale 6 to 2", []uint8{0, 10, 20, 30, 40, 50}, 2, []uint8{10, 40}},
		{"downscale 6 to 3", []uint8{0, 10, 20, 30, 40, 50}, 3, []uint8{10, 30, 50}},
		{"upscale 2 to 4", []uint8{10, 200}, 4, []uint8{10, 10, 200, 200}},
		{"upscale 3 to 6", []uint8{10, 100, 200}, 6, []uint8{10, 10, 100, 100, 200, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tensor := Normalize(columns(tt.cols, len(tt.cols)), tt.size, Interpolation("nearest"))
			checkShape(t, tensor, tt.size)

			for row := 0; row < tt.size; row++ {
				got := redRow(tensor, row)
				for x := range tt.want {
					if got[x] != tt.want[x] {
						t.Fatalf("row %d red = %v, expected %v", row, got, tt.want)
					}
				}
			}
		})
	}
}

func TestNormalize_NearestSamplingRows(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	rows := []uint8{0, 80, 160, 240}
	for y, v := range rows {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{0, v, 0, 255})
		}
	}

	tensor := Normalize(img, 2, resize.NearestNeighbor)

	want := []uint8{80, 240}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			got := uint8(tensor.Data[(y*2+x)*Channels+1]*255 + 0.5)
			if got != want[y] {
				t.Fatalf("pixel (%d,%d) green = %d, expected %d", x, y, got, want[y])
			}
		}
	}
}

func TestDecode_DeclaredSizeTooLarge(t *testing.T) {
	// GIF header declaring a 65535x65535 logical screen and no pixel data.
	header := []byte("GIF89a\xff\xff\xff\xff\x00\x00\x00")

	_, _, err := Decode(bytes.NewReader(header))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("error = %v, expected ErrImageTooLarge", err)
	}
	if errors.Is(err, ErrDecode) {
		t.Errorf("oversized image should not be reported as a decode error")
	}
}
