package appicon

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic writes to a temporary file next to path and renames it into
// place, so a failed write never leaves a truncated icon behind. An existing
// file keeps its permission bits; new files get 0644.
func writeAtomic(path string, write func(io.Writer) error) error {
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".appicon-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), perm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writePNG(path string, img image.Image) error {
	return writeAtomic(path, func(w io.Writer) error {
		return EncodePNG(w, img)
	})
}

// copyFile replaces dst with the contents of src. Copying a file onto itself
// is a no-op.
func copyFile(src, dst string) error {
	if samePath(src, dst) {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeAtomic(dst, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
