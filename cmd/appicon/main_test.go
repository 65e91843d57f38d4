package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	appicon "github.com/gcslaoli/appicon-go"
)

func writeLogo(t *testing.T, path string, size int) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{R: 0xff, A: 0xff}), image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("APPICON_CONFIG", "")
	t.Setenv("APPICON_DIR", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunDefaultRecipe(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, filepath.Join(dir, "logo-square.png"), 200)

	code, stdout, stderr := runCLI(t, "-dir", dir, "-verify")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Created") || !strings.Contains(stdout, "centered true") {
		t.Fatalf("unexpected stdout: %s", stdout)
	}
	if err := appicon.Verify(filepath.Join(dir, "logo.png"), 1024); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestRunMissingLogo(t *testing.T) {
	dir := t.TempDir()

	code, stdout, _ := runCLI(t, "-dir", dir)
	if code != 0 {
		t.Fatalf("exit code %d, want 0", code)
	}
	if strings.TrimSpace(stdout) != "Logo file not found" {
		t.Fatalf("stdout = %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "logo.png")); !os.IsNotExist(err) {
		t.Fatalf("logo.png should not exist, stat err = %v", err)
	}
}

func TestRunFallbackRecipe(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, filepath.Join(dir, "fallback.png"), 32)

	code, stdout, stderr := runCLI(t, "-dir", dir, "-recipe", "proper", "-fallback", "fallback.png", "-verify")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Copied fallback") {
		t.Fatalf("unexpected stdout: %s", stdout)
	}
	if !strings.Contains(stderr, "Error:") {
		t.Fatalf("expected diagnostic on stderr, got %q", stderr)
	}
	if err := appicon.Verify(filepath.Join(dir, "logo.png"), 32); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestRunOverridesAndBase64Output(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, filepath.Join(dir, "brand.png"), 64)

	code, stdout, stderr := runCLI(t,
		"-dir", dir, "-in", "brand.png", "-out", "icon.png",
		"-size", "256", "-logo", "128", "-bg", "white",
		"-variants", "64,32", "-outbase64",
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	data, err := base64.StdEncoding.DecodeString(lines[len(lines)-1])
	if err != nil {
		t.Fatalf("last stdout line is not base64: %v", err)
	}
	report, err := appicon.InspectBytes(data)
	if err != nil {
		t.Fatalf("InspectBytes error: %v", err)
	}
	if report.Width != 256 || report.Content != image.Rect(64, 64, 192, 192) {
		t.Fatalf("report = %+v", report)
	}
	if report.Background != (color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Fatalf("background = %v, want white", report.Background)
	}
	if err := appicon.Verify(filepath.Join(dir, "icon-32.png"), 32); err != nil {
		t.Fatalf("variant: %v", err)
	}
}

func TestRunBase64Input(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.src.png")
	writeLogo(t, src, 16)
	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	input := "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	code, _, stderr := runCLI(t, "-dir", dir, "-inbase64", input, "-mode", "resize", "-logo", "48")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if err := appicon.Verify(filepath.Join(dir, "logo.png"), 48); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestRunConfigFileInDir(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, filepath.Join(dir, "mark.png"), 40)
	config := "default: tiny\nrecipes:\n  tiny:\n    source: mark.png\n    output: tiny.png\n    canvas_size: 100\n    scale: 0.5\n"
	if err := os.WriteFile(filepath.Join(dir, "appicon.yaml"), []byte(config), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	code, stdout, stderr := runCLI(t, "-dir", dir, "-list")
	if code != 0 || !strings.Contains(stdout, "* tiny") || !strings.Contains(stdout, "smaller") {
		t.Fatalf("list exit %d stdout %q stderr %q", code, stdout, stderr)
	}

	code, _, stderr = runCLI(t, "-dir", dir)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if err := appicon.Verify(filepath.Join(dir, "tiny.png"), 100); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}

func TestRunUsageErrors(t *testing.T) {
	dir := t.TempDir()

	cases := [][]string{
		{"-dir", dir, "-recipe", "nope"},
		{"-dir", dir, "-mode", "stretch"},
		{"-dir", dir, "-variants", "big"},
		{"-dir", dir, "extra"},
		{"-dir", dir, "-watch", "-inbase64", "aGVsbG8="},
		{"-no-such-flag"},
	}
	for _, args := range cases {
		if code, _, _ := runCLI(t, args...); code != 2 {
			t.Fatalf("run(%v) exit code = %d, want 2", args, code)
		}
	}
}

func TestParseSizes(t *testing.T) {
	got, err := parseSizes("180, 192,,512")
	if err != nil {
		t.Fatalf("parseSizes error: %v", err)
	}
	if want := []int{180, 192, 512}; !reflect.DeepEqual(got, want) {
		t.Fatalf("parseSizes = %v, want %v", got, want)
	}
	if _, err := parseSizes("180,x"); err == nil {
		t.Fatalf("expected error for non-numeric size")
	}
}

func TestRunLogoFlagOverridesScale(t *testing.T) {
	dir := t.TempDir()
	writeLogo(t, filepath.Join(dir, "brand.png"), 80)

	code, _, stderr := runCLI(t,
		"-dir", dir, "-in", "brand.png", "-out", "o.png",
		"-mode", "resize", "-size", "200", "-logo", "50", "-scale", "0.5",
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if err := appicon.Verify(filepath.Join(dir, "o.png"), 50); err != nil {
		t.Fatalf("Verify error: %v", err)
	}

	code, _, stderr = runCLI(t,
		"-dir", dir, "-in", "brand.png", "-out", "s.png",
		"-mode", "resize", "-size", "200", "-scale", "0.5",
	)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if err := appicon.Verify(filepath.Join(dir, "s.png"), 100); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
}
