package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	appicon "github.com/gcslaoli/appicon-go"
	"github.com/gcslaoli/appicon-go/internal/watch"
)

// go run ./cmd/appicon
// go run ./cmd/appicon -recipe proper -dir mobile/assets
// go run ./cmd/appicon -in logo-square.png -out icon.png -size 512 -bg "#101010"
// go run ./cmd/appicon -watch -verify -variants 180,192,512 -ico favicon.ico

const configFile = "appicon.yaml"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("appicon", flag.ContinueOnError)
	fset.SetOutput(stderr)

	recipeName := fset.String("recipe", "", "Recipe to run (default from config, normally \"composite\")")
	configPath := fset.String("config", os.Getenv("APPICON_CONFIG"), "YAML recipe file (defaults to "+configFile+" in -dir when present)")
	dir := fset.String("dir", envOr("APPICON_DIR", "."), "Directory that relative recipe paths are resolved against")
	input := fset.String("in", "", "Override the source logo path")
	inputBase64 := fset.String("inbase64", "", "Base64 source logo (optionally data URL)")
	output := fset.String("out", "", "Override the output path")
	fallback := fset.String("fallback", "", "Override the fallback file copied when the build fails")
	mode := fset.String("mode", "", "Override the mode: composite, resize or copy")
	size := fset.Int("size", 0, "Canvas edge in pixels")
	logo := fset.Int("logo", 0, "Logo edge in pixels (overrides -scale)")
	scale := fset.Float64("scale", 0, "Logo edge as a fraction of the canvas")
	bg := fset.String("bg", "", "Background color: black, white, transparent or #rrggbb[aa]")
	filter := fset.String("filter", "", "Resampling filter: lanczos, catmullrom, linear, box, nearest")
	variants := fset.String("variants", "", "Comma separated extra sizes, written as <out>-<n>.png")
	icoPath := fset.String("ico", "", "Also write an .ico file")
	watchMode := fset.Bool("watch", false, "Rebuild whenever the source changes")
	verify := fset.Bool("verify", false, "Check the output decodes at the expected size")
	list := fset.Bool("list", false, "List recipes and exit")
	outputBase64 := fset.Bool("outbase64", false, "Print the output PNG as base64 to stdout")

	if err := fset.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fset.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fset.Args())
		fset.Usage()
		return 2
	}

	if *watchMode && *inputBase64 != "" {
		fmt.Fprintln(stderr, "-watch cannot be combined with -inbase64")
		fset.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath, *dir)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}

	if *list {
		for _, name := range cfg.Names() {
			r, _ := cfg.Recipe(name)
			marker := " "
			if name == cfg.Default {
				marker = "*"
			}
			fmt.Fprintf(stdout, "%s %-10s %-9s %s -> %s  %s\n", marker, name, r.Mode, r.Source, r.Output, r.Description)
		}
		return 0
	}

	recipe, err := cfg.Recipe(*recipeName)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	if *input != "" {
		recipe.Source = *input
	}
	if *output != "" {
		recipe.Output = *output
	}
	if *fallback != "" {
		recipe.Fallback = *fallback
	}
	if *mode != "" {
		recipe.Mode = appicon.Mode(*mode)
	}
	if *size > 0 {
		recipe.CanvasSize = *size
	}
	if *scale > 0 {
		recipe.Scale = *scale
		recipe.LogoSize = 0
	}
	if *logo > 0 {
		recipe.LogoSize = *logo
	}
	if *bg != "" {
		recipe.Background = *bg
	}
	if *filter != "" {
		recipe.Filter = *filter
	}
	if *variants != "" {
		sizes, err := parseSizes(*variants)
		if err != nil {
			fmt.Fprintf(stderr, "parse -variants: %v\n", err)
			return 2
		}
		recipe.Variants = sizes
	}
	if *icoPath != "" {
		recipe.ICO = *icoPath
	}
	recipe = recipe.Resolve(*dir)

	if *inputBase64 != "" {
		src, cleanup, err := stageBase64Source(*inputBase64)
		if err != nil {
			fmt.Fprintf(stderr, "decode -inbase64: %v\n", err)
			return 1
		}
		defer cleanup()
		recipe.Source = src
	}

	if err := recipe.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	eng := appicon.NewEngine()
	eng.Logger = log.New(stderr, "", 0)

	build := func() int {
		return buildOnce(ctx, eng, recipe, *verify, *outputBase64, stdout, stderr)
	}

	code := build()
	if !*watchMode {
		return code
	}

	fmt.Fprintf(stdout, "Watching %s for changes (Ctrl+C to stop)\n", recipe.Source)
	err = watch.Run(ctx, []string{recipe.Source}, watch.DefaultDelay, func(path string) {
		fmt.Fprintf(stdout, "%s changed, rebuilding\n", path)
		build()
	})
	if err != nil {
		fmt.Fprintf(stderr, "watch: %v\n", err)
		return 1
	}
	return 0
}

func buildOnce(ctx context.Context, eng *appicon.Engine, recipe appicon.Recipe, verify, outputBase64 bool, stdout, stderr io.Writer) int {
	res, err := eng.Run(ctx, recipe)
	if err != nil {
		if errors.Is(err, appicon.ErrSourceMissing) && recipe.RequireSource {
			fmt.Fprintln(stdout, "Logo file not found")
			return 0
		}
		fmt.Fprintf(stderr, "build %s: %v\n", recipe.Name, err)
		return 1
	}

	switch {
	case res.FellBack:
		fmt.Fprintf(stdout, "Copied fallback %s -> %s (%dx%d)\n", recipe.Fallback, res.Output, res.Width, res.Height)
	case res.Mode == appicon.ModeComposite:
		fmt.Fprintf(stdout, "Created %s (%dx%d, logo %dx%d at %v) from %s\n", res.Output, res.Width, res.Height, res.Logo.Dx(), res.Logo.Dy(), res.Logo.Min, recipe.Source)
	case res.Mode == appicon.ModeResize:
		fmt.Fprintf(stdout, "Created %s (%dx%d) from %s\n", res.Output, res.Width, res.Height, recipe.Source)
	default:
		fmt.Fprintf(stdout, "Copied %s -> %s (%dx%d)\n", recipe.Source, res.Output, res.Width, res.Height)
	}
	for _, v := range res.Variants {
		fmt.Fprintf(stdout, "Wrote %s\n", v)
	}
	if res.ICO != "" {
		fmt.Fprintf(stdout, "Wrote %s\n", res.ICO)
	}

	if verify {
		want := recipe.ExpectedSize()
		if res.FellBack {
			want = 0
		}
		if err := appicon.Verify(res.Output, want); err != nil {
			fmt.Fprintf(stderr, "verify: %v\n", err)
			return 1
		}
		report, err := appicon.InspectFile(res.Output)
		if err != nil {
			fmt.Fprintf(stderr, "inspect: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Verified %s: %dx%d, background %v, content %v, centered %v\n",
			res.Output, report.Width, report.Height, report.Background, report.Content, report.Centered())
	}

	if outputBase64 {
		encoded, err := appicon.EncodeFileToBase64(res.Output)
		if err != nil {
			fmt.Fprintf(stderr, "encode base64 output: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, encoded)
	}
	return 0
}

// loadConfig reads path when given, otherwise appicon.yaml in dir when it
// exists, otherwise the built-in presets.
func loadConfig(path, dir string) (*appicon.Config, error) {
	if path != "" {
		return appicon.LoadConfig(path)
	}
	candidate := filepath.Join(dir, configFile)
	if _, err := os.Stat(candidate); err == nil {
		return appicon.LoadConfig(candidate)
	}
	return appicon.DefaultConfig(), nil
}

// stageBase64Source decodes a base64 logo into a temporary PNG so it can be
// used as a recipe source.
func stageBase64Source(input string) (string, func(), error) {
	img, _, err := appicon.DecodeBase64Image(input)
	if err != nil {
		return "", nil, err
	}

	dir, err := os.MkdirTemp("", "appicon-src-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, "source.png")
	f, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	if err := appicon.EncodePNG(f, img); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
