// Package reporter installs the native crash handler for the running
// application.
package reporter

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/harun/crashkeeper/internal/abi"
	"github.com/harun/crashkeeper/internal/environment"
	"github.com/harun/crashkeeper/internal/metrics"
	"github.com/harun/crashkeeper/internal/nativehandler"
	"github.com/harun/crashkeeper/pkg/crashplugin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ErrorTypeAttribute classifies every native report
const (
	ErrorTypeAttribute = "error.type"
	ErrorTypeCrash     = "Crash"
)

// Mode selects how the crash handler is launched
type Mode int

const (
	// ModeHandler uses the handler executable installed next to the native libraries
	ModeHandler Mode = iota
	// ModeSecondChance re-enters the application package in a fresh process
	ModeSecondChance
)

func (m Mode) String() string {
	switch m {
	case ModeHandler:
		return "handler"
	case ModeSecondChance:
		return "second-chance"
	default:
		return "unknown"
	}
}

// ParseMode converts a configured mode name
func ParseMode(name string) (Mode, error) {
	switch name {
	case "handler":
		return ModeHandler, nil
	case "second-chance", "":
		return ModeSecondChance, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownMode, name)
	}
}

// LibraryLoader loads the crash handler library found at path
type LibraryLoader interface {
	Load(path string, environ []string) (crashplugin.Capability, error)
}

// Options configures a Reporter
type Options struct {
	Application   environment.ApplicationInfo
	Loader        LibraryLoader
	Fs            afero.Fs
	Environ       func() []string
	ABI           func() abi.Tag
	UnwindingMode crashplugin.UnwindingMode
	Logger        zerolog.Logger
	Metrics       *metrics.Metrics
}

// Reporter owns the lifetime of the native crash handler
type Reporter struct {
	app           environment.ApplicationInfo
	loader        LibraryLoader
	fs            afero.Fs
	environ       func() []string
	abi           func() abi.Tag
	unwindingMode crashplugin.UnwindingMode
	logger        zerolog.Logger
	metrics       *metrics.Metrics

	mu         sync.Mutex
	enabled    bool
	capability crashplugin.Capability
	err        error
}

// New creates a reporter; nothing is touched until Initialize
func New(opts Options) *Reporter {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ABI == nil {
		opts.ABI = abi.Current
	}
	return &Reporter{
		app:           opts.Application,
		loader:        opts.Loader,
		fs:            opts.Fs,
		environ:       opts.Environ,
		abi:           opts.ABI,
		unwindingMode: opts.UnwindingMode,
		logger:        opts.Logger.With().Str("component", "reporter").Logger(),
		metrics:       opts.Metrics,
	}
}

// Initialize installs the crash handler. It returns false, without error,
// whenever crashes cannot be captured; the reason is logged and kept in Err.
func (r *Reporter) Initialize(ctx context.Context, manifest Manifest, mode Mode) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enabled {
		r.logger.Warn().Msg("Crash reporter is already initialized")
		r.err = ErrAlreadyInitialized
		return false
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error().Interface("panic", recovered).Msg("Cannot initialize crash handler")
			r.err = fmt.Errorf("%w: panic: %v", crashplugin.ErrInvocation, recovered)
			ok = false
		}
		r.enabled = ok
		if !ok {
			r.capability = nil
		}
		r.metrics.HandlerInitialized(mode.String(), ok)
	}()

	if err := manifest.Validate(); err != nil {
		r.logger.Error().Err(err).Msg("Cannot initialize crash handler")
		r.err = err
		return false
	}

	if _, set := manifest.Attributes[ErrorTypeAttribute]; !set {
		manifest = manifest.WithAttribute(ErrorTypeAttribute, ErrorTypeCrash)
	}

	// Unsupported ABIs are refused before any file is looked at, in every mode
	tag := r.abi()
	var err error
	switch {
	case !abi.IsSupported(tag):
		err = fmt.Errorf("%w: %s", ErrUnsupportedABI, tag)
	case mode == ModeSecondChance:
		ok, err = r.initializeSecondChance(ctx, manifest, tag)
	case mode == ModeHandler:
		ok, err = r.initializeHandler(ctx, manifest, tag)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}

	r.err = err
	if err != nil {
		r.logger.Error().Err(err).Str("mode", mode.String()).Msg("Cannot initialize crash handler")
		return false
	}
	if !ok {
		r.logger.Error().Str("mode", mode.String()).Msg("Native crash handler refused the configuration")
		return false
	}

	r.logger.Info().
		Str("mode", mode.String()).
		Str("database", manifest.DatabasePath).
		Msg("Crash handler initialized")
	return true
}

func (r *Reporter) initializeSecondChance(ctx context.Context, manifest Manifest, tag abi.Tag) (bool, error) {
	crashDir, err := environment.EnsureCrashDirectory(r.fs, manifest.DatabasePath)
	if err != nil {
		return false, err
	}

	locator := nativehandler.NewLocator(r.fs)
	env := environment.NewBuilderWithEnviron(locator, r.environ).Build(r.app, tag)
	environ := env.Environ()

	capability, err := r.load(env.Get(environment.CrashHandlerVar), environ)
	if err != nil {
		return false, err
	}

	keys, values := splitAttributes(manifest.Attributes)
	ok, err := capability.InitializeSecondChanceHandler(ctx, crashplugin.SecondChanceRequest{
		SubmissionURL:   manifest.SubmissionURL,
		DatabasePath:    crashDir,
		ClassPath:       env.Get(environment.ClassPathVar),
		AttributeKeys:   keys,
		AttributeValues: values,
		AttachmentPaths: manifest.AttachmentPaths,
		Environment:     environ,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", crashplugin.ErrInvocation, err)
	}
	return ok, nil
}

func (r *Reporter) initializeHandler(ctx context.Context, manifest Manifest, tag abi.Tag) (bool, error) {
	locator := nativehandler.NewLocator(r.fs)

	handlerPath := manifest.HandlerPath
	if handlerPath == "" {
		handlerPath = r.app.NativeLibraryDirectory + "/" + nativehandler.HandlerFileName
	}
	if !locator.Exists(handlerPath) {
		return false, fmt.Errorf("%w: %s", nativehandler.ErrHandlerBinaryMissing, handlerPath)
	}

	crashDir, err := environment.EnsureCrashDirectory(r.fs, manifest.DatabasePath)
	if err != nil {
		return false, err
	}

	ref := locator.Resolve(r.app.NativeLibraryDirectory, r.app.PackagePath, tag)
	var environ []string
	if r.environ != nil {
		environ = r.environ()
	}

	capability, err := r.load(ref.Path, environ)
	if err != nil {
		return false, err
	}

	keys, values := splitAttributes(manifest.Attributes)
	ok, err := capability.InitializeCrashHandler(ctx, crashplugin.HandlerRequest{
		SubmissionURL:       manifest.SubmissionURL,
		DatabasePath:        crashDir,
		HandlerPath:         handlerPath,
		AttributeKeys:       keys,
		AttributeValues:     values,
		AttachmentPaths:     manifest.AttachmentPaths,
		ClientSideUnwinding: false,
		UnwindingMode:       r.unwindingMode,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", crashplugin.ErrInvocation, err)
	}
	return ok, nil
}

func (r *Reporter) load(path string, environ []string) (crashplugin.Capability, error) {
	if r.loader == nil {
		return nil, fmt.Errorf("%w: no library loader configured", crashplugin.ErrLibraryLoad)
	}
	capability, err := r.loader.Load(path, environ)
	if err != nil {
		return nil, err
	}
	r.capability = capability
	return capability, nil
}

// UpdateAttributes forwards attributes to the native handler. It does nothing
// until Initialize succeeded.
func (r *Reporter) UpdateAttributes(ctx context.Context, attributes map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled || r.capability == nil {
		return
	}

	keys, values := splitAttributes(attributes)
	for i, key := range keys {
		if err := r.capability.AddAttribute(ctx, key, values[i]); err != nil {
			r.logger.Warn().Err(err).Str("key", key).Msg("Cannot update crash attribute")
		}
	}
}

// Enabled reports whether a crash handler is installed
func (r *Reporter) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Err returns the reason the last Initialize call returned false
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close disables the reporter and releases the loader when it holds resources
func (r *Reporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.enabled = false
	r.capability = nil
	if closer, ok := r.loader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// splitAttributes returns parallel key and value slices ordered by key
func splitAttributes(attributes map[string]string) ([]string, []string) {
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = attributes[key]
	}
	return keys, values
}
