package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/pkg/crashplugin"
	"github.com/rs/zerolog"
)

// State is a step of a single crash handler run
type State string

const (
	StateNotStarted State = "not_started"
	StateLoading    State = "loading"
	StateInvoking   State = "invoking"
	StateDone       State = "done"
)

// LibraryLoader loads the crash handler library found at path
type LibraryLoader interface {
	Load(path string, environ []string) (crashplugin.Capability, error)
}

// Runner is the body of the second-chance process. Everything it needs is
// rediscovered from the environment; nothing is shared with the crashed
// process.
type Runner struct {
	loader  LibraryLoader
	logger  zerolog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	state     State
	succeeded bool
	err       error
}

// NewRunner creates a new runner
func NewRunner(loader LibraryLoader, logger zerolog.Logger, m *metrics.Metrics) *Runner {
	return &Runner{
		loader:  loader,
		logger:  logger.With().Str("component", "crash-handler-runner").Logger(),
		metrics: m,
		state:   StateNotStarted,
	}
}

// Run loads the handler named by the environment and passes args to its crash
// capture entry point. It returns the entry point's result; configuration
// problems, load failures and panics are logged and reported as false so the
// second-chance process never crashes itself.
func (r *Runner) Run(ctx context.Context, args []string, env *environment.Set) (ok bool) {
	start := time.Now()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error().Interface("panic", recovered).Msg("Cannot capture crash dump. Crash handler panicked")
			r.finish(false, fmt.Errorf("%w: panic: %v", ErrNativeInvocation, recovered))
			ok = false
		}
		r.metrics.CrashHandlerRan(ok, time.Since(start))
	}()

	if env == nil {
		r.logger.Error().Msg("Cannot capture crash dump. Environment variables are undefined")
		r.finish(false, ErrEnvironmentVariableMissing)
		return false
	}

	libraryPath, found := env.Lookup(environment.CrashHandlerVar)
	if !found || libraryPath == "" {
		r.logger.Error().
			Str("variable", environment.CrashHandlerVar).
			Msg("Cannot capture crash dump. Environment variable not found")
		r.finish(false, fmt.Errorf("%w: %s", ErrEnvironmentVariableMissing, environment.CrashHandlerVar))
		return false
	}

	r.setState(StateLoading)
	capability, err := r.loader.Load(libraryPath, env.Environ())
	if err != nil {
		r.logger.Error().Err(err).Str("library", libraryPath).Msg("Cannot capture crash dump. Library load failed")
		r.finish(false, err)
		return false
	}

	r.setState(StateInvoking)
	result, err := capability.HandleCrash(ctx, args)
	if err != nil {
		r.logger.Error().Err(err).Msg("Cannot capture crash dump. Native invocation failed")
		r.finish(false, fmt.Errorf("%w: %v", ErrNativeInvocation, err))
		return false
	}
	if !result {
		r.logger.Error().
			Str("args", strings.Join(args, " ")).
			Msg("Cannot capture crash dump")
		r.finish(false, nil)
		return false
	}

	r.logger.Info().Msg("Successfully ran crash handler code")
	r.finish(true, nil)
	return true
}

// State returns the current step of the run
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Succeeded reports whether the run reached Done with a successful capture
func (r *Runner) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateDone && r.succeeded
}

// Err returns the failure that ended the run, if any
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Runner) setState(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

func (r *Runner) finish(succeeded bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateDone
	r.succeeded = succeeded
	r.err = err
}
