package breadcrumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	trimmed := strings.TrimSuffix(string(content), "\n")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}

func newLogger(t *testing.T, max int) (*RotatingLogger, string, string) {
	t.Helper()

	dir := t.TempDir()
	active := filepath.Join(dir, "a.log")
	fallback := filepath.Join(dir, "b.log")

	l := NewRotatingLogger(Options{Logger: zerolog.Nop()})
	require.NoError(t, l.Configure(active, fallback, max))
	t.Cleanup(func() { l.Close() })

	return l, active, fallback
}

func TestConfigure(t *testing.T) {
	t.Run("creates and truncates active file", func(t *testing.T) {
		dir := t.TempDir()
		active := filepath.Join(dir, "a.log")
		require.NoError(t, os.WriteFile(active, []byte("stale\n"), 0644))

		l := NewRotatingLogger(Options{})
		require.NoError(t, l.Configure(active, filepath.Join(dir, "b.log"), 3))
		defer l.Close()

		assert.True(t, l.Enabled())
		assert.Equal(t, 0, l.LineCount())
		assert.Empty(t, readLines(t, active))
	})

	t.Run("creates missing directories", func(t *testing.T) {
		dir := t.TempDir()
		active := filepath.Join(dir, "nested", "a.log")

		l := NewRotatingLogger(Options{})
		require.NoError(t, l.Configure(active, filepath.Join(dir, "nested", "b.log"), 3))
		defer l.Close()

		_, err := os.Stat(active)
		assert.NoError(t, err)
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		l := NewRotatingLogger(Options{})
		err := l.Configure(filepath.Join(t.TempDir(), "a.log"), "b.log", 0)
		assert.ErrorIs(t, err, ErrInvalidLimit)
		assert.False(t, l.Enabled())
	})

	t.Run("fails when active file cannot be opened", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		l := NewRotatingLogger(Options{Fs: fs})

		err := l.Configure("/logs/a.log", "/logs/b.log", 3)
		assert.Error(t, err)
		assert.False(t, l.Enabled())
		assert.False(t, l.Append("x\n"))
	})
}

func TestAppendNotConfigured(t *testing.T) {
	l := NewRotatingLogger(Options{})
	assert.False(t, l.Append("x1\n"))
	assert.Equal(t, 0, l.LineCount())
}

func TestAppendRotationScenario(t *testing.T) {
	l, active, fallback := newLogger(t, 3)

	for _, line := range []string{"x1\n", "x2\n", "x3\n"} {
		require.True(t, l.Append(line))
	}

	assert.Equal(t, []string{"x1", "x2", "x3"}, readLines(t, active))
	assert.Nil(t, readLines(t, fallback))
	assert.Equal(t, 3, l.LineCount())

	require.True(t, l.Append("x4\n"))

	assert.Equal(t, []string{"x4"}, readLines(t, active))
	assert.Equal(t, []string{"x1", "x2", "x3"}, readLines(t, fallback))
	assert.Equal(t, 1, l.LineCount())
}

func TestAppendWritesLineVerbatim(t *testing.T) {
	l, active, _ := newLogger(t, 5)

	require.True(t, l.Append("no-newline"))
	require.True(t, l.Append("-continued\n"))

	content, err := os.ReadFile(active)
	require.NoError(t, err)
	assert.Equal(t, "no-newline-continued\n", string(content))
}

func TestAppendRetainsOnlyPreviousBatch(t *testing.T) {
	for _, k := range []int{1, 2, 3, 5} {
		for _, n := range []int{1, 4, 7, 10, 15} {
			t.Run(fmt.Sprintf("k=%d n=%d", k, n), func(t *testing.T) {
				l, active, fallback := newLogger(t, k)

				var lines []string
				for i := 1; i <= n; i++ {
					line := fmt.Sprintf("line-%d", i)
					lines = append(lines, line)
					require.True(t, l.Append(line+"\n"))
				}

				expectedActive := n % k
				if expectedActive == 0 {
					expectedActive = k
				}
				assert.Equal(t, lines[n-expectedActive:], readLines(t, active))
				assert.Equal(t, expectedActive, l.LineCount())

				previous := lines[:n-expectedActive]
				if len(previous) == 0 {
					assert.Nil(t, readLines(t, fallback))
					return
				}
				start := len(previous) - k
				if start < 0 {
					start = 0
				}
				assert.Equal(t, previous[start:], readLines(t, fallback))
			})
		}
	}
}

func TestRotateTwiceWithSingleLineFiles(t *testing.T) {
	l, active, fallback := newLogger(t, 1)

	require.True(t, l.Append("first\n"))
	require.True(t, l.Append("second\n"))
	require.True(t, l.Append("third\n"))

	assert.Equal(t, []string{"third"}, readLines(t, active))
	assert.Equal(t, []string{"second"}, readLines(t, fallback))
}

func TestConcurrentAppend(t *testing.T) {
	const (
		writers   = 8
		perWriter = 50
		k         = 7
	)
	l, active, fallback := newLogger(t, k)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.True(t, l.Append(fmt.Sprintf("w%d-%d\n", w, i)))
			}
		}(w)
	}
	wg.Wait()

	total := writers * perWriter
	expectedActive := total % k
	if expectedActive == 0 {
		expectedActive = k
	}
	assert.Len(t, readLines(t, active), expectedActive)
	assert.Len(t, readLines(t, fallback), k)
	assert.Equal(t, expectedActive, l.LineCount())
}

func TestAppendRecoversAfterWriteFailure(t *testing.T) {
	l, active, _ := newLogger(t, 10)
	require.True(t, l.Append("before\n"))

	// Simulate a broken handle; the next append must reopen the active file.
	l.mu.Lock()
	l.file.Close()
	l.mu.Unlock()

	assert.False(t, l.Append("lost\n"))
	assert.True(t, l.Append("after\n"))

	assert.Equal(t, []string{"before", "after"}, readLines(t, active))
	assert.Equal(t, 2, l.LineCount())
}

// flakyFs fails the next renames and truncating opens it is told to
type flakyFs struct {
	afero.Fs

	mu            sync.Mutex
	failRenames   int
	failTruncates int
}

func (f *flakyFs) Rename(oldname, newname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRenames > 0 {
		f.failRenames--
		return fmt.Errorf("rename %s: device busy", oldname)
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *flakyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if flag&os.O_TRUNC != 0 && f.failTruncates > 0 {
		f.failTruncates--
		return nil, fmt.Errorf("open %s: no space left on device", name)
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestAppendRecoversAfterRotationFailure(t *testing.T) {
	m := metrics.NewMetrics()
	dir := t.TempDir()
	active := filepath.Join(dir, "a.log")
	fallback := filepath.Join(dir, "b.log")

	fs := &flakyFs{Fs: afero.NewOsFs()}
	l := NewRotatingLogger(Options{Fs: fs, Logger: zerolog.Nop(), Metrics: m})
	require.NoError(t, l.Configure(active, fallback, 2))
	defer l.Close()

	require.True(t, l.Append("1\n"))
	require.True(t, l.Append("2\n"))

	t.Run("rename fails", func(t *testing.T) {
		fs.failRenames = 1

		assert.False(t, l.Append("3\n"))
		assert.True(t, l.Append("4\n"))

		assert.Equal(t, []string{"4"}, readLines(t, active))
		assert.Equal(t, []string{"1", "2"}, readLines(t, fallback))
		assert.Equal(t, 1, l.LineCount())
	})

	t.Run("reopen fails after the rename", func(t *testing.T) {
		require.True(t, l.Append("5\n"))
		fs.failTruncates = 1

		assert.False(t, l.Append("6\n"))
		// the finished batch already moved to the fallback file
		assert.Equal(t, []string{"4", "5"}, readLines(t, fallback))

		assert.True(t, l.Append("7\n"))
		assert.Equal(t, []string{"7"}, readLines(t, active))
		assert.Equal(t, []string{"4", "5"}, readLines(t, fallback))
		assert.Equal(t, 1, l.LineCount())
	})

	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreadcrumbErrorsTotal.WithLabelValues("rotate")))
	// only the rotation whose reopen succeeded is counted
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreadcrumbRotationsTotal))
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestFailureLoggedIntoSameLogger(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "a.log")
	fallback := filepath.Join(dir, "b.log")

	var l *RotatingLogger
	sink := writerFunc(func(p []byte) (int, error) { return l.Write(p) })

	fs := &flakyFs{Fs: afero.NewOsFs()}
	l = NewRotatingLogger(Options{Fs: fs, Logger: zerolog.New(sink)})
	require.NoError(t, l.Configure(active, fallback, 1))
	defer l.Close()

	require.True(t, l.Append("a\n"))
	fs.failRenames = 1

	done := make(chan bool, 1)
	go func() { done <- l.Append("b\n") }()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Append did not return after logging its own failure")
	}

	// the failure report itself became the next breadcrumb
	lines := readLines(t, active)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Cannot append a breadcrumb line")
	assert.Equal(t, []string{"a"}, readLines(t, fallback))
}

func TestClose(t *testing.T) {
	l, _, _ := newLogger(t, 3)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.False(t, l.Enabled())
	assert.False(t, l.Append("x\n"))
}

func TestReconfigureClosesPreviousWriter(t *testing.T) {
	l, first, _ := newLogger(t, 3)
	require.True(t, l.Append("old\n"))

	dir := t.TempDir()
	second := filepath.Join(dir, "c.log")
	require.NoError(t, l.Configure(second, filepath.Join(dir, "d.log"), 3))
	require.True(t, l.Append("new\n"))

	assert.Equal(t, []string{"old"}, readLines(t, first))
	assert.Equal(t, []string{"new"}, readLines(t, second))

	active, fallback := l.Files()
	assert.Equal(t, second, active)
	assert.Equal(t, filepath.Join(dir, "d.log"), fallback)
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.NewMetrics()
	dir := t.TempDir()

	l := NewRotatingLogger(Options{Metrics: m})
	require.NoError(t, l.Configure(filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log"), 2))
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.True(t, l.Append("x\n"))
	}

	assert.Equal(t, float64(5), testutil.ToFloat64(m.BreadcrumbsAppendedTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.BreadcrumbRotationsTotal))
}

func TestDefaultFiles(t *testing.T) {
	active, fallback := DefaultFiles("/session")
	assert.Equal(t, "/session/bt-breadcrumbs-0", active)
	assert.Equal(t, "/session/bt-breadcrumbs-1", fallback)
}

func TestLinesPerFile(t *testing.T) {
	assert.Equal(t, 50, LinesPerFile(0))
	assert.Equal(t, 50, LinesPerFile(100))
	assert.Equal(t, 5, LinesPerFile(11))
	assert.Equal(t, 1, LinesPerFile(1))
}

func TestWriteAsLogSink(t *testing.T) {
	t.Run("disabled logger discards", func(t *testing.T) {
		l := NewRotatingLogger(Options{})

		n, err := l.Write([]byte("dropped\n"))
		require.NoError(t, err)
		assert.Equal(t, 8, n)
	})

	t.Run("zerolog lines become breadcrumbs", func(t *testing.T) {
		l, active, fallback := newLogger(t, 2)
		zl := zerolog.New(l)

		zl.Info().Msg("first")
		zl.Info().Msg("second")
		zl.Warn().Msg("third")

		activeLines := readLines(t, active)
		require.Len(t, activeLines, 1)
		assert.Contains(t, activeLines[0], `"message":"third"`)
		assert.Len(t, readLines(t, fallback), 2)
	})

	t.Run("failed append is reported", func(t *testing.T) {
		fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
		l := NewRotatingLogger(Options{Fs: fs})
		l.mu.Lock()
		l.enabled = true
		l.activePath = "/crumbs/a"
		l.fallbackPath = "/crumbs/b"
		l.maxLines = 2
		l.mu.Unlock()

		_, err := l.Write([]byte("line\n"))
		assert.ErrorIs(t, err, ErrNotAppended)
	})
}
