package catalog

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/askdb/askdb/internal/logging"
)

// debounce window for bursts of writes while the external build replaces
// the artifact files one by one.
const reloadDelay = 500 * time.Millisecond

// Watch reloads the catalog whenever the artifact directory changes.
// It blocks until ctx is cancelled. Reload failures keep the previous
// snapshot and are logged, never propagated to in-flight runs.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.cfg.Dir); err != nil {
		return err
	}

	logger := logging.WithField("dir", s.cfg.Dir)
	logger.Info("watching catalog directory for refresh")

	var timer *time.Timer

	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if timer != nil {
				timer.Stop()
			}

			timer = time.AfterFunc(reloadDelay, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			if err := s.Reload(); err != nil {
				logger.ErrorWithErr("catalog reload failed, keeping previous snapshot", err)
				continue
			}

			logger.WithField("version", s.Version()).Info("catalog reloaded")

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.ErrorWithErr("catalog watcher error", watchErr)
		}
	}
}
