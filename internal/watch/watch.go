// Package watch reruns a build whenever one of its input files changes.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long a file must stay quiet before the callback runs.
const DefaultDelay = 500 * time.Millisecond

// Run watches files until ctx is cancelled and calls fn with the path of the
// changed file once a burst of events has settled for delay. The parent
// directories are watched rather than the files themselves so editors that
// replace a file on save are still seen. fn runs on the caller's goroutine.
func Run(ctx context.Context, files []string, delay time.Duration, fn func(path string)) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to watch")
	}
	if delay <= 0 {
		delay = DefaultDelay
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsWatcher.Close()

	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", dir, err)
		}
		log.Printf("Watching folder: %s", dir)
	}

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending string
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !targets[name] {
				continue
			}

			// Debounce: restart the quiet period on every event.
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			fire = timer.C
			pending = name

		case <-fire:
			fire = nil
			fn(pending)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}
