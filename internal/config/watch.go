package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchThresholds monitors path for changes and calls onChange with the newly
// loaded Thresholds each time the file is written. It runs until ctx is
// cancelled.
//
// If a reload fails (e.g., invalid JSON), the error is logged and the
// previous thresholds remain active; WatchThresholds does not call onChange.
func WatchThresholds(ctx context.Context, path string, logger *slog.Logger, onChange func(Thresholds)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	logger.InfoContext(ctx, "watching thresholds file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Only reload on write or create events. Editors often save via
			// rename (atomic save), so also catch fsnotify.Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			th, err := LoadThresholds(path)
			if err != nil {
				logger.ErrorContext(ctx, "thresholds reload failed, keeping previous values",
					"path", path,
					"error", err,
				)
				continue
			}

			logger.InfoContext(ctx, "thresholds reloaded",
				"mild", th.MildScore,
				"urgent", th.UrgentScore,
			)
			onChange(th)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.ErrorContext(ctx, "thresholds watcher error", "error", err)
		}
	}
}
