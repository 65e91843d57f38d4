package appicon

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Mode selects what a recipe writes to its output path.
type Mode string

const (
	// ModeComposite pastes the resized logo centered on a background canvas.
	ModeComposite Mode = "composite"
	// ModeResize writes the resized logo on its own.
	ModeResize Mode = "resize"
	// ModeCopy copies the source file unchanged.
	ModeCopy Mode = "copy"
)

// Defaults applied by WithDefaults to fields left empty.
const (
	DefaultOutput     = "logo.png"
	DefaultCanvasSize = 1024
	DefaultScale      = 0.6
	DefaultBackground = "black"
	DefaultFilter     = "lanczos"
)

var (
	// ErrSourceMissing reports that the recipe's source image does not exist.
	ErrSourceMissing = errors.New("source image not found")
	// ErrInvalidRecipe wraps every recipe validation failure.
	ErrInvalidRecipe = errors.New("invalid recipe")
	// ErrUnknownRecipe is returned when a recipe name is not configured.
	ErrUnknownRecipe = errors.New("unknown recipe")
)

var filters = map[string]imaging.ResampleFilter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"linear":     imaging.Linear,
	"box":        imaging.Box,
	"nearest":    imaging.NearestNeighbor,
}

// Recipe describes one icon build.
type Recipe struct {
	Name          string  `yaml:"-"`
	Description   string  `yaml:"description"`
	Source        string  `yaml:"source"`
	Output        string  `yaml:"output"`
	Fallback      string  `yaml:"fallback"`
	Mode          Mode    `yaml:"mode"`
	CanvasSize    int     `yaml:"canvas_size"`
	LogoSize      int     `yaml:"logo_size"`
	Scale         float64 `yaml:"scale"`
	Background    string  `yaml:"background"`
	Filter        string  `yaml:"filter"`
	RequireSource bool    `yaml:"require_source"`
	Variants      []int   `yaml:"variants"`
	ICO           string  `yaml:"ico"`
}

// WithDefaults returns a copy of r with empty fields set to their defaults.
func (r Recipe) WithDefaults() Recipe {
	if r.Mode == "" {
		r.Mode = ModeComposite
	}
	if r.Output == "" {
		r.Output = DefaultOutput
	}
	if r.CanvasSize == 0 {
		r.CanvasSize = DefaultCanvasSize
	}
	if r.Scale == 0 {
		r.Scale = DefaultScale
	}
	if r.Background == "" {
		r.Background = DefaultBackground
	}
	if r.Filter == "" {
		r.Filter = DefaultFilter
	}
	return r
}

// Resolve returns a copy of r with relative file paths joined onto dir.
func (r Recipe) Resolve(dir string) Recipe {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	r.Source = join(r.Source)
	r.Output = join(r.Output)
	r.Fallback = join(r.Fallback)
	r.ICO = join(r.ICO)
	return r
}

// ResolvedLogoSize is LogoSize, or CanvasSize scaled by Scale when unset.
func (r Recipe) ResolvedLogoSize() int {
	if r.LogoSize > 0 {
		return r.LogoSize
	}
	return int(float64(r.CanvasSize) * r.Scale)
}

// Offset is the top-left corner that centers the logo on the canvas.
func (r Recipe) Offset() image.Point {
	d := (r.CanvasSize - r.ResolvedLogoSize()) / 2
	return image.Pt(d, d)
}

// ExpectedSize is the edge length of the image the recipe writes, or 0 when
// the output keeps the dimensions of the copied source.
func (r Recipe) ExpectedSize() int {
	switch r.Mode {
	case ModeComposite:
		return r.CanvasSize
	case ModeResize:
		return r.ResolvedLogoSize()
	}
	return 0
}

// Validate checks a recipe that already has its defaults applied.
func (r Recipe) Validate() error {
	if r.Source == "" {
		return fmt.Errorf("%w: source is required", ErrInvalidRecipe)
	}
	if r.Output == "" {
		return fmt.Errorf("%w: output is required", ErrInvalidRecipe)
	}

	switch r.Mode {
	case ModeCopy:
	case ModeComposite, ModeResize:
		if r.CanvasSize <= 0 {
			return fmt.Errorf("%w: canvas_size must be positive, got %d", ErrInvalidRecipe, r.CanvasSize)
		}
		if r.LogoSize < 0 {
			return fmt.Errorf("%w: logo_size must not be negative, got %d", ErrInvalidRecipe, r.LogoSize)
		}
		if r.LogoSize == 0 && (r.Scale <= 0 || r.Scale > 1) {
			return fmt.Errorf("%w: scale must be in (0, 1], got %g", ErrInvalidRecipe, r.Scale)
		}
		size := r.ResolvedLogoSize()
		if size <= 0 {
			return fmt.Errorf("%w: logo size resolves to %d", ErrInvalidRecipe, size)
		}
		if r.Mode == ModeComposite && size > r.CanvasSize {
			return fmt.Errorf("%w: logo %d larger than canvas %d", ErrInvalidRecipe, size, r.CanvasSize)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRecipe, r.Mode)
	}

	if _, err := ParseColor(r.Background); err != nil {
		return fmt.Errorf("%w: background: %v", ErrInvalidRecipe, err)
	}
	if _, ok := filters[strings.ToLower(r.Filter)]; !ok {
		return fmt.Errorf("%w: unknown filter %q", ErrInvalidRecipe, r.Filter)
	}
	for _, n := range r.Variants {
		if n <= 0 {
			return fmt.Errorf("%w: variant size must be positive, got %d", ErrInvalidRecipe, n)
		}
	}
	return nil
}

func (r Recipe) resampleFilter() imaging.ResampleFilter {
	if f, ok := filters[strings.ToLower(r.Filter)]; ok {
		return f
	}
	return imaging.Lanczos
}

// ParseColor accepts "black", "white", "transparent", #rgb, #rrggbb and
// #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black":
		return color.NRGBA{A: 0xff}, nil
	case "white":
		return color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, nil
	case "transparent":
		return color.NRGBA{}, nil
	}

	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("unrecognised color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("unrecognised color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
