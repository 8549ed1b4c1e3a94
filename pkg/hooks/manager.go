package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// EventHandlerInstalled fires once the native crash handler accepted its configuration
	EventHandlerInstalled = "handler.installed"
	// EventCrashDetected fires for every new dump in the crash database
	EventCrashDetected = "crash.detected"

	envPrefix = "CRASHKEEPER_HOOK_"
)

// ErrUnknownEvent is returned for hooks bound to an event that is never fired
var ErrUnknownEvent = errors.New("unknown hook event")

// Events lists every event a hook can be bound to
var Events = []string{EventHandlerInstalled, EventCrashDetected}

// Hook runs a shell script when an event fires
type Hook struct {
	ID      string
	Event   string
	Script  string
	Timeout time.Duration
	Enabled bool
}

// Config configures a hook manager
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager executes the hooks configured for crash lifecycle events
type Manager struct {
	enabled bool
	logger  zerolog.Logger

	mu           sync.RWMutex
	hooksByEvent map[string][]Hook
}

// NewManager validates the enabled hooks and groups them by event
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		enabled:      cfg.Enabled,
		logger:       cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent: make(map[string][]Hook),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		event := strings.TrimSpace(hook.Event)
		if !IsKnownEvent(event) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", event)
		}
		manager.hooksByEvent[event] = append(manager.hooksByEvent[event], hook)
	}

	return manager, nil
}

// IsKnownEvent reports whether event is one of Events
func IsKnownEvent(event string) bool {
	for _, known := range Events {
		if event == known {
			return true
		}
	}
	return false
}

// Count returns the number of hooks bound to event
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooksByEvent[event])
}

// Trigger runs every hook bound to event in configuration order. All hooks
// run even when one fails; the failures are joined.
func (m *Manager) Trigger(ctx context.Context, event string, data map[string]string) error {
	if m == nil || !m.enabled {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("event is required")
	}

	m.mu.RLock()
	hooks := append([]Hook(nil), m.hooksByEvent[event]...)
	m.mu.RUnlock()
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.executeHook(ctx, event, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) executeHook(ctx context.Context, event string, hook Hook, data map[string]string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = event
	}

	runCtx := ctx
	cancel := func() {}
	if hook.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, hook.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(os.Environ(), event, data)

	start := time.Now()
	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	m.logger.Debug().
		Str("event", event).
		Str("hook_id", hookID).
		Dur("duration", time.Since(start)).
		Str("output", outputText).
		Msg("Hook executed")

	return nil
}

// buildHookEnvironment appends the event and its data to the inherited
// environment as CRASHKEEPER_HOOK_EVENT and CRASHKEEPER_HOOK_<KEY>
func buildHookEnvironment(inherited []string, event string, data map[string]string) []string {
	env := append([]string{}, inherited...)
	env = append(env, envPrefix+"EVENT="+event)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		env = append(env, envPrefix+normalizeEnvKey(key)+"="+data[key])
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
