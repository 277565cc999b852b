package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ThresholdWatcher reloads the config file whenever it changes on disk and
// reports a new dedup.threshold. It lets `datagen cache threshold` retune a
// running server.
type ThresholdWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(threshold float64)
	current  float64
	logger   *zap.Logger

	started bool
	done    chan struct{}
}

// NewThresholdWatcher watches the directory holding configPath, so editors
// that replace the file by rename are seen too.
func NewThresholdWatcher(configPath string, current float64, onChange func(float64), logger *zap.Logger) (*ThresholdWatcher, error) {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch config dir: %w", err)
	}

	return &ThresholdWatcher{
		path:     abs,
		watcher:  w,
		onChange: onChange,
		current:  current,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until ctx is cancelled or Close is called.
func (w *ThresholdWatcher) Start(ctx context.Context) {
	w.started = true
	go w.run(ctx)
}

// Close stops watching and waits for the event loop to exit.
func (w *ThresholdWatcher) Close() error {
	err := w.watcher.Close()
	if w.started {
		<-w.done
	}
	return err
}

func (w *ThresholdWatcher) run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (w *ThresholdWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		// a write may be observed half-way; the next event carries the rest
		w.logger.Debug("Skipping config reload", zap.Error(err))
		return
	}

	if cfg.Dedup.Threshold == w.current {
		return
	}

	w.logger.Info("Similarity threshold changed on disk",
		zap.Float64("from", w.current),
		zap.Float64("to", cfg.Dedup.Threshold))
	w.current = cfg.Dedup.Threshold
	w.onChange(cfg.Dedup.Threshold)
}
