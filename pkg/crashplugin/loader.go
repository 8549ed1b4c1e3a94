package crashplugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/harun/crashkeeper/internal/nativehandler"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Loader starts crash handler processes and dispenses their capability.
// Loading the same path twice returns the already running handler.
type Loader struct {
	logger     zerolog.Logger
	fs         afero.Fs
	extractor  *nativehandler.Extractor
	extractDir string

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
}

type handle struct {
	client     *plugin.Client
	capability Capability
}

// LoaderConfig holds loader configuration
type LoaderConfig struct {
	// ExtractDir receives handlers unpacked from the application package
	ExtractDir string

	// Fs backs package extraction and the existence check of the handler,
	// defaults to the OS filesystem
	Fs afero.Fs
}

// NewLoader creates a new handler loader
func NewLoader(logger zerolog.Logger, cfg LoaderConfig) *Loader {
	if cfg.ExtractDir == "" {
		cfg.ExtractDir = filepath.Join(os.TempDir(), "crashkeeper-handler")
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Loader{
		logger:     logger.With().Str("component", "handler-loader").Logger(),
		fs:         cfg.Fs,
		extractor:  nativehandler.NewExtractor(cfg.Fs, logger),
		extractDir: cfg.ExtractDir,
		handles:    make(map[string]*handle),
	}
}

// Load starts the handler found at path with the given environment and
// returns its capability. Package-internal references are extracted first.
func (l *Loader) Load(path string, environ []string) (Capability, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	if h, ok := l.handles[path]; ok && !h.client.Exited() {
		return h.capability, nil
	}

	executable := path
	if nativehandler.IsEmbedded(path) {
		extracted, err := l.extractor.Extract(path, l.extractDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLibraryLoad, err)
		}
		executable = extracted
	}

	if _, err := l.fs.Stat(executable); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLibraryLoad, err)
	}

	cmd := exec.Command(executable)
	cmd.Env = environ

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              cmd,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "crash-handler",
			Output: l.logger,
			Level:  hclog.Warn,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("%w: connect: %v", ErrLibraryLoad, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("%w: dispense: %v", ErrLibraryLoad, err)
	}

	capability, ok := raw.(Capability)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("%w: unexpected plugin type %T", ErrLibraryLoad, raw)
	}

	l.handles[path] = &handle{client: client, capability: capability}

	l.logger.Info().
		Str("path", path).
		Str("executable", executable).
		Msg("Crash handler loaded")

	return capability, nil
}

// Close stops every handler process started by this loader
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	for path, h := range l.handles {
		h.client.Kill()
		delete(l.handles, path)
	}
	return nil
}
