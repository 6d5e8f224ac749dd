package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

const watchDebounce = 500 * time.Millisecond

// Watch re-reads path whenever it changes and hands each successfully parsed
// config to onChange. Invalid edits are logged and skipped. It blocks until
// ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	log := logging.New("config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	log.Infof("Watching %s for changes", path)

	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Config watcher error: %v", err)
		case <-reload:
			content, err := os.ReadFile(abs)
			if err != nil {
				log.Warnf("Config reload skipped: %v", err)
				continue
			}
			cfg, err := Parse(content)
			if err != nil {
				log.Warnf("Config reload skipped: %v", err)
				continue
			}
			cfg.Path = path
			applyEnvOverrides(cfg)
			log.Infof("Config reloaded")
			onChange(cfg)
		}
	}
}

// ApplyLogging pushes the log settings of cfg into the global logger.
func ApplyLogging(cfg *Config) {
	logging.SetLogLevel(cfg.Log.LevelValue())
	logging.SetTagFilter(cfg.Log.Tags)
}
