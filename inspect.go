package appicon

import (
	"fmt"
	"image"
	"image/color"
)

const (
	// Per-channel difference (0-255) above which a pixel counts as content
	// rather than background.
	contentTolerance = 24
)

// Report summarises an icon's layout.
type Report struct {
	Width      int
	Height     int
	Background color.NRGBA
	// Content bounds the pixels that differ from Background. It is empty for
	// a blank canvas.
	Content image.Rectangle
}

// Centered reports whether the content sits in the middle of the image,
// allowing one pixel of rounding on each axis.
func (r Report) Centered() bool {
	if r.Content.Empty() {
		return false
	}
	left, right := r.Content.Min.X, r.Width-r.Content.Max.X
	top, bottom := r.Content.Min.Y, r.Height-r.Content.Max.Y
	return abs(left-right) <= 1 && abs(top-bottom) <= 1
}

// Inspect estimates the background colour from a band along the image border
// and locates the content drawn on top of it. Coordinates in the report are
// relative to the image origin.
func Inspect(img image.Image) (Report, error) {
	if img == nil {
		return Report{}, fmt.Errorf("nil image provided")
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Report{}, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	band := min(width, height) / 32
	if band < 1 {
		band = 1
	}
	bg, count := meanColor(img, bounds, bounds.Inset(band))
	if count == 0 {
		return Report{}, fmt.Errorf("insufficient pixels to sample background")
	}

	content := image.Rectangle{}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if !differs(c, bg) {
				continue
			}
			content = content.Union(image.Rect(x, y, x+1, y+1))
		}
	}

	return Report{
		Width:      width,
		Height:     height,
		Background: bg,
		Content:    content.Sub(bounds.Min),
	}, nil
}

// InspectBytes decodes raw image bytes and delegates to Inspect.
func InspectBytes(data []byte) (Report, error) {
	img, _, err := DecodeImageBytes(data)
	if err != nil {
		return Report{}, err
	}
	return Inspect(img)
}

// InspectFile decodes the image at path and delegates to Inspect.
func InspectFile(path string) (Report, error) {
	img, _, err := DecodeFile(path)
	if err != nil {
		return Report{}, err
	}
	return Inspect(img)
}

// Verify checks that path holds a decodable image. When size is positive the
// image must also be exactly size×size.
func Verify(path string, size int) error {
	cfg, _, err := DecodeFileConfig(path)
	if err != nil {
		return err
	}
	if size > 0 && (cfg.Width != size || cfg.Height != size) {
		return fmt.Errorf("%s is %dx%d, want %dx%d", path, cfg.Width, cfg.Height, size, size)
	}
	return nil
}

// meanColor averages the pixels in region. If exclude is not empty, pixels
// inside exclude are skipped.
func meanColor(img image.Image, region, exclude image.Rectangle) (color.NRGBA, int) {
	var sum [4]int
	var count int

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			if !exclude.Empty() && (image.Point{X: x, Y: y}).In(exclude) {
				continue
			}

			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sum[0] += int(c.R)
			sum[1] += int(c.G)
			sum[2] += int(c.B)
			sum[3] += int(c.A)
			count++
		}
	}

	if count == 0 {
		return color.NRGBA{}, 0
	}

	return color.NRGBA{
		R: uint8(sum[0] / count),
		G: uint8(sum[1] / count),
		B: uint8(sum[2] / count),
		A: uint8(sum[3] / count),
	}, count
}

func differs(a, b color.NRGBA) bool {
	return abs(int(a.R)-int(b.R)) > contentTolerance ||
		abs(int(a.G)-int(b.G)) > contentTolerance ||
		abs(int(a.B)-int(b.B)) > contentTolerance ||
		abs(int(a.A)-int(b.A)) > contentTolerance
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
