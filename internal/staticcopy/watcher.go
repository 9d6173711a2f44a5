package staticcopy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

type watchRoot struct {
	path   string
	target int
}

// Watch recopies a target whenever a file below one of its sources changes.
// Changes are debounced per target. It only observes the OS filesystem and
// blocks until ctx is cancelled, then returns nil. Files deleted from a source
// are left in the output directory.
func (c *Copier) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	var roots []watchRoot
	for i, t := range c.targets {
		matches, err := c.matches(t)
		if err != nil {
			log.Warn().Err(err).Str("src", t.Src).Msg("Not watching static copy target")
			continue
		}
		for _, m := range matches {
			if err := c.addTree(fsw, m); err != nil {
				return err
			}
			roots = append(roots, watchRoot{path: m, target: i})
		}
	}

	fire := make(chan struct{}, 1)
	pending := make(map[int]struct{})
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			idx := targetFor(roots, event.Name)
			if idx < 0 {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := c.addTree(fsw, event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}
			pending[idx] = struct{}{}

			// Reset debounce timer
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(c.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			for idx := range pending {
				t := c.targets[idx]
				if _, err := c.Copy(ctx, t); err != nil {
					log.Warn().Err(err).Str("src", t.Src).Msg("Static recopy failed")
					continue
				}
				log.Info().Str("src", t.Src).Str("dest", t.Dest).Msg("Static target recopied")
			}
			clear(pending)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

// addTree watches root and, when it is a directory, every directory below it.
func (c *Copier) addTree(fsw *fsnotify.Watcher, root string) error {
	return afero.Walk(c.srcFs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || path == root {
			return fsw.Add(path)
		}
		return nil
	})
}

func targetFor(roots []watchRoot, name string) int {
	for _, r := range roots {
		rel, err := filepath.Rel(r.path, name)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return r.target
		}
	}
	return -1
}
