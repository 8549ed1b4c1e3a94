package breadcrumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	// ActiveFileName and FallbackFileName name the default breadcrumb file pair
	ActiveFileName   = "bt-breadcrumbs-0"
	FallbackFileName = "bt-breadcrumbs-1"

	// DefaultMaximumBreadcrumbs is the total breadcrumb budget across both files
	DefaultMaximumBreadcrumbs = 100
)

// RotatingLogger appends breadcrumb lines to an active file and, once the
// file holds the configured number of lines, demotes it to a single fallback
// file. At most two batches are ever retained.
type RotatingLogger struct {
	fs      afero.Fs
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	enabled      bool
	activePath   string
	fallbackPath string
	maxLines     int
	lineCount    int
	file         afero.File
}

// Options holds optional collaborators of the logger
type Options struct {
	Fs      afero.Fs
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// NewRotatingLogger creates a disabled logger; call Configure before Append
func NewRotatingLogger(opts Options) *RotatingLogger {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	return &RotatingLogger{
		fs:      opts.Fs,
		logger:  opts.Logger.With().Str("component", "breadcrumbs").Logger(),
		metrics: opts.Metrics,
	}
}

// Configure enables the logger and opens the active file, truncating any
// previous content. A configured logger is closed first.
func (l *RotatingLogger) Configure(activePath, fallbackPath string, maxLinesPerFile int) error {
	if maxLinesPerFile <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, maxLinesPerFile)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeFile()
	l.enabled = false

	file, err := l.openActive(activePath, os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("failed to open breadcrumb file: %w", err)
	}

	l.activePath = activePath
	l.fallbackPath = fallbackPath
	l.maxLines = maxLinesPerFile
	l.lineCount = 0
	l.file = file
	l.enabled = true

	l.logger.Debug().
		Str("active", activePath).
		Str("fallback", fallbackPath).
		Int("max_lines", maxLinesPerFile).
		Msg("Breadcrumb logger configured")

	return nil
}

// Append writes line as-is (no terminator is added) and reports whether it
// reached the file. It never panics or returns an error to the caller.
func (l *RotatingLogger) Append(line string) bool {
	ok, op, err := l.append(line)
	if err != nil {
		// Logged after the lock is released: the logger may write back into l
		l.logger.Debug().Err(err).Str("op", op).Msg("Cannot append a breadcrumb line")
	}
	return ok
}

// append reports the failed operation and its error when an enabled logger
// drops line
func (l *RotatingLogger) append(line string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return false, "", nil
	}

	if l.lineCount+1 > l.maxLines {
		if err := l.prepareNextBatch(); err != nil {
			return l.fail("rotate", err)
		}
		l.lineCount = 0
	}

	if l.file == nil {
		file, err := l.openActive(l.activePath, os.O_APPEND)
		if err != nil {
			return l.fail("open", err)
		}
		l.file = file
	}

	if _, err := l.file.WriteString(line); err != nil {
		return l.fail("write", err)
	}
	if err := l.file.Sync(); err != nil {
		return l.fail("flush", err)
	}

	l.lineCount++
	l.metrics.BreadcrumbAppended()
	return true, "", nil
}

// Write appends p as a single breadcrumb line so the logger can serve as a
// zerolog sink. Lines written while the logger is disabled are discarded.
func (l *RotatingLogger) Write(p []byte) (int, error) {
	if l.Append(string(p)) {
		return len(p), nil
	}
	if !l.Enabled() {
		return len(p), nil
	}
	return 0, ErrNotAppended
}

// Close releases the active file and disables the logger. It is idempotent.
func (l *RotatingLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.enabled = false
	return l.closeFile()
}

// LineCount returns the number of lines in the active batch
func (l *RotatingLogger) LineCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lineCount
}

// Enabled reports whether Configure succeeded and Close was not called
func (l *RotatingLogger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Files returns the active and fallback paths
func (l *RotatingLogger) Files() (active string, fallback string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activePath, l.fallbackPath
}

// prepareNextBatch closes the active file, moves it over the fallback file and
// opens a fresh active file. Callers hold l.mu.
func (l *RotatingLogger) prepareNextBatch() error {
	if err := l.closeFile(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrRotation, err)
	}

	if err := l.fs.Rename(l.activePath, l.fallbackPath); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrRotation, err)
	}
	// The batch now lives in the fallback file even if the reopen below fails.
	l.lineCount = 0

	file, err := l.openActive(l.activePath, os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("%w: reopen: %v", ErrRotation, err)
	}
	l.file = file

	l.metrics.BreadcrumbRotated()
	return nil
}

func (l *RotatingLogger) openActive(path string, mode int) (afero.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := l.fs.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return l.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|mode, 0644)
}

func (l *RotatingLogger) closeFile() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// fail drops the file handle so the next Append reopens it. Callers hold l.mu.
func (l *RotatingLogger) fail(op string, err error) (bool, string, error) {
	l.closeFile()
	l.metrics.BreadcrumbFailed(op)
	return false, op, err
}

// DefaultFiles returns the breadcrumb file pair inside dir
func DefaultFiles(dir string) (active string, fallback string) {
	return filepath.Join(dir, ActiveFileName), filepath.Join(dir, FallbackFileName)
}

// LinesPerFile splits a total breadcrumb budget across the two files
func LinesPerFile(maximumBreadcrumbs int) int {
	if maximumBreadcrumbs <= 0 {
		maximumBreadcrumbs = DefaultMaximumBreadcrumbs
	}
	if perFile := maximumBreadcrumbs / 2; perFile > 0 {
		return perFile
	}
	return 1
}
