package appicon

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	ico "github.com/sergeymakinen/go-ico"
	"golang.org/x/image/draw"
)

const (
	// Names of the intermediates kept in the scratch directory.
	scratchLogo   = "small_logo.png"
	scratchCanvas = "black_bg.png"

	// Largest edge an .ico entry can describe.
	maxICOSize = 256
)

// Result describes what a run wrote.
type Result struct {
	Recipe   string
	Output   string
	Mode     Mode
	Width    int
	Height   int
	Logo     image.Rectangle
	Variants []string
	ICO      string

	// FellBack is set when the build failed and Fallback was copied to
	// Output instead. Err holds the masked build error.
	FellBack bool
	Err      error
}

// Engine executes recipes.
type Engine struct {
	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger
	// ScratchDir is the parent of the per-build scratch directory. Empty
	// means os.TempDir.
	ScratchDir string
}

// NewEngine constructs an Engine that logs to stderr.
func NewEngine() *Engine {
	return &Engine{Logger: log.New(os.Stderr, "", 0)}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Run builds the recipe and, when the build fails, copies the recipe's
// fallback file to the output path. The fallback is skipped for invalid
// recipes, cancelled contexts, and missing sources of recipes that require
// them; those errors are returned as-is.
func (e *Engine) Run(ctx context.Context, r Recipe) (Result, error) {
	r = r.WithDefaults()

	res, err := e.Build(ctx, r)
	if err == nil {
		return res, nil
	}

	switch {
	case errors.Is(err, ErrInvalidRecipe),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrSourceMissing) && r.RequireSource,
		r.Fallback == "":
		return Result{}, err
	}

	e.logf("Error: %v", err)
	if cerr := copyFile(r.Fallback, r.Output); cerr != nil {
		return Result{}, errors.Join(err, fmt.Errorf("fallback %s: %w", r.Fallback, cerr))
	}
	e.logf("Copied fallback %s -> %s", r.Fallback, r.Output)

	res = Result{Recipe: r.Name, Output: r.Output, Mode: r.Mode, FellBack: true, Err: err}
	if cfg, _, cerr := DecodeFileConfig(r.Output); cerr == nil {
		res.Width, res.Height = cfg.Width, cfg.Height
	}
	return res, nil
}

// Build executes the recipe without any fallback. Intermediates live in a
// scratch directory that is removed before Build returns.
func (e *Engine) Build(ctx context.Context, r Recipe) (Result, error) {
	r = r.WithDefaults()
	if err := r.Validate(); err != nil {
		return Result{}, err
	}

	if _, err := os.Stat(r.Source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceMissing, r.Source)
		}
		return Result{}, fmt.Errorf("stat source: %w", err)
	}

	scratch, err := os.MkdirTemp(e.ScratchDir, "appicon-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	var (
		res   Result
		final image.Image
	)
	switch r.Mode {
	case ModeComposite:
		res, final, err = e.composite(ctx, r, scratch)
	case ModeResize:
		res, final, err = e.resize(ctx, r, scratch)
	case ModeCopy:
		res, final, err = e.copySource(r)
	}
	if err != nil {
		return Result{}, err
	}
	res.Recipe = r.Name
	res.Output = r.Output
	res.Mode = r.Mode

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := e.derive(r, final, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

// resizeLogo decodes the source and scales it to the recipe's logo size. The
// scaled logo is also stored in the scratch directory.
func (e *Engine) resizeLogo(ctx context.Context, r Recipe, scratch string) (*image.NRGBA, string, error) {
	src, format, err := DecodeFile(r.Source)
	if err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	size := r.ResolvedLogoSize()
	logo := imaging.Resize(src, size, size, r.resampleFilter())
	e.logf("Resized %s (%s, %dx%d) to %dx%d", r.Source, format, src.Bounds().Dx(), src.Bounds().Dy(), size, size)

	path := filepath.Join(scratch, scratchLogo)
	if err := writePNG(path, logo); err != nil {
		return nil, "", fmt.Errorf("write resized logo: %w", err)
	}
	return logo, path, nil
}

func (e *Engine) composite(ctx context.Context, r Recipe, scratch string) (Result, image.Image, error) {
	logo, _, err := e.resizeLogo(ctx, r, scratch)
	if err != nil {
		return Result{}, nil, err
	}

	bg, err := ParseColor(r.Background)
	if err != nil {
		return Result{}, nil, err
	}
	canvas := imaging.New(r.CanvasSize, r.CanvasSize, bg)
	if err := writePNG(filepath.Join(scratch, scratchCanvas), canvas); err != nil {
		return Result{}, nil, fmt.Errorf("write canvas: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, nil, err
	}

	rect := logo.Bounds().Add(r.Offset())
	paste(canvas, rect, logo)

	if err := writePNG(r.Output, canvas); err != nil {
		return Result{}, nil, fmt.Errorf("write %s: %w", r.Output, err)
	}
	e.logf("Composited logo onto %dx%d %s canvas at %v", r.CanvasSize, r.CanvasSize, r.Background, rect.Min)

	return Result{Width: r.CanvasSize, Height: r.CanvasSize, Logo: rect}, canvas, nil
}

// paste draws logo into rect on canvas. Translucent logos use their alpha
// channel as the mask; opaque ones replace the canvas pixels.
func paste(canvas draw.Image, rect image.Rectangle, logo *image.NRGBA) {
	op := draw.Over
	if logo.Opaque() {
		op = draw.Src
	}
	draw.Draw(canvas, rect, logo, logo.Bounds().Min, op)
}

func (e *Engine) resize(ctx context.Context, r Recipe, scratch string) (Result, image.Image, error) {
	logo, path, err := e.resizeLogo(ctx, r, scratch)
	if err != nil {
		return Result{}, nil, err
	}
	if err := copyFile(path, r.Output); err != nil {
		return Result{}, nil, fmt.Errorf("copy resized logo: %w", err)
	}

	b := logo.Bounds()
	return Result{Width: b.Dx(), Height: b.Dy(), Logo: b}, logo, nil
}

func (e *Engine) copySource(r Recipe) (Result, image.Image, error) {
	cfg, format, err := DecodeFileConfig(r.Source)
	if err != nil {
		return Result{}, nil, err
	}
	if err := copyFile(r.Source, r.Output); err != nil {
		return Result{}, nil, fmt.Errorf("copy %s: %w", r.Source, err)
	}
	e.logf("Copied %s (%s, %dx%d) to %s", r.Source, format, cfg.Width, cfg.Height, r.Output)

	res := Result{Width: cfg.Width, Height: cfg.Height}
	if len(r.Variants) == 0 && r.ICO == "" {
		return res, nil, nil
	}

	img, _, err := DecodeFile(r.Output)
	if err != nil {
		return Result{}, nil, err
	}
	return res, img, nil
}

// derive writes the recipe's extra square sizes and .ico file from the
// final icon. A non-square icon, possible in copy mode, is center-cropped
// to a square for its variants rather than stretched.
func (e *Engine) derive(r Recipe, final image.Image, res *Result) error {
	for _, n := range r.Variants {
		path := VariantPath(r.Output, n)
		if err := writePNG(path, imaging.Fill(final, n, n, imaging.Center, r.resampleFilter())); err != nil {
			return fmt.Errorf("write variant %d: %w", n, err)
		}
		res.Variants = append(res.Variants, path)
	}

	if r.ICO == "" {
		return nil
	}
	img := final
	if b := img.Bounds(); b.Dx() > maxICOSize || b.Dy() > maxICOSize {
		img = imaging.Fit(img, maxICOSize, maxICOSize, r.resampleFilter())
	}
	err := writeAtomic(r.ICO, func(w io.Writer) error {
		return ico.Encode(w, img)
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", r.ICO, err)
	}
	res.ICO = r.ICO
	return nil
}

// VariantPath names the n×n copy of output, e.g. logo.png -> logo-180.png.
func VariantPath(output string, n int) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "-" + strconv.Itoa(n) + ".png"
}
