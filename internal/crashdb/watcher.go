// Package crashdb observes the crash database written by the out-of-process
// crash handler.
package crashdb

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/rs/zerolog"
)

// DumpExtension is the suffix of minidump files in the crash database
const DumpExtension = ".dmp"

// DumpCallback is called once per dump file that appeared in the database
type DumpCallback func(path string) error

// Config holds configuration for the watcher
type Config struct {
	Directory          string
	StabilityThreshold time.Duration
	OnDump             DumpCallback
	Logger             zerolog.Logger
	Metrics            *metrics.Metrics
}

// Watcher reports new dump files below the crash directory. A dump that
// moves between the handler's new, pending and completed directories is
// reported only once.
type Watcher struct {
	watcher            *fsnotify.Watcher
	directory          string
	stabilityThreshold time.Duration
	onDump             DumpCallback
	logger             zerolog.Logger
	metrics            *metrics.Metrics

	done           chan struct{}
	debounceTimers map[string]*time.Timer
	seen           map[string]struct{}
	mu             sync.Mutex
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewWatcher creates a new crash database watcher
func NewWatcher(config Config) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if config.StabilityThreshold == 0 {
		config.StabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            watcher,
		directory:          config.Directory,
		stabilityThreshold: config.StabilityThreshold,
		onDump:             config.OnDump,
		logger:             config.Logger.With().Str("component", "crashdb").Logger(),
		metrics:            config.Metrics,
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
		seen:               make(map[string]struct{}),
	}, nil
}

// Start starts watching the crash directory. Dumps already present are
// remembered and not reported.
func (w *Watcher) Start() error {
	existing, err := Pending(w.directory)
	if err != nil {
		return fmt.Errorf("failed to scan crash directory: %w", err)
	}

	w.mu.Lock()
	for _, path := range existing {
		w.seen[filepath.Base(path)] = struct{}{}
	}
	w.mu.Unlock()

	if err := w.addDirectoryRecursive(w.directory); err != nil {
		return fmt.Errorf("failed to watch crash directory: %w", err)
	}

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info().
		Str("path", w.directory).
		Int("existing", len(existing)).
		Msg("Crash database watcher started")

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Info().Msg("Crash database watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	// The handler creates its new/pending/completed directories lazily
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryRecursive(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to watch path")
			}
			// dumps written before the watch was added
			dumps, err := Pending(event.Name)
			if err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("Failed to list dumps")
			}
			for _, dump := range dumps {
				w.debounce(dump)
			}
			return
		}
	}

	if !isDump(event.Name) {
		return
	}

	w.debounce(event.Name)
}

// debounce waits until a dump stops changing before reporting it
func (w *Watcher) debounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.debounceTimers[path]; exists {
		timer.Stop()
	}

	w.debounceTimers[path] = time.AfterFunc(w.stabilityThreshold, func() {
		w.mu.Lock()
		delete(w.debounceTimers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.report(path)
		}
	})
}

func (w *Watcher) report(path string) {
	if _, err := os.Stat(path); err != nil {
		// moved on to the next database directory; that event reports it
		return
	}

	name := filepath.Base(path)
	w.mu.Lock()
	if _, dup := w.seen[name]; dup {
		w.mu.Unlock()
		return
	}
	w.seen[name] = struct{}{}
	w.mu.Unlock()

	w.metrics.CrashDumpDetected()
	w.logger.Info().Str("path", path).Msg("Crash dump detected")

	if w.onDump != nil {
		if err := w.onDump(path); err != nil {
			w.logger.Error().
				Err(err).
				Str("path", path).
				Msg("Error handling crash dump")
		}
	}
}

func (w *Watcher) addDirectoryRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(walkPath); err != nil {
			w.logger.Warn().
				Err(err).
				Str("path", walkPath).
				Msg("Failed to watch path")
		}
		return nil
	})
}

// Pending lists every dump file below dir, sorted by path. A missing
// directory holds no dumps.
func Pending(dir string) ([]string, error) {
	var dumps []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && isDump(path) {
			dumps = append(dumps, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(dumps)
	return dumps, nil
}

func isDump(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && strings.HasSuffix(base, DumpExtension)
}
