package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/crashkeeper/internal/abi"
	"github.com/harun/crashkeeper/internal/nativehandler"
	"github.com/spf13/afero"
)

// Variable names shared with the second-chance process
const (
	ClassPathVar    = "CLASSPATH"
	CrashHandlerVar = "BACKTRACE_CRASH_HANDLER"
	LibraryPathVar  = "LD_LIBRARY_PATH"
	DataRootVar     = "ANDROID_DATA"
)

const (
	// DataRoot is the fixed value of DataRootVar
	DataRoot = "/data"

	// LocalDataDirectory is the last library search path entry
	LocalDataDirectory = "/data/local"

	// CrashDirectoryName is the handler-specific subdirectory of the database root
	CrashDirectoryName = "crashpad"
)

// InjectedKeys lists every variable Build adds or overrides
var InjectedKeys = []string{ClassPathVar, CrashHandlerVar, LibraryPathVar, DataRootVar}

// ApplicationInfo holds the installation paths of the host application
type ApplicationInfo struct {
	// PackagePath is the application package (archive) on disk
	PackagePath string

	// NativeLibraryDirectory is where the installer extracts native libraries
	NativeLibraryDirectory string
}

// Builder constructs the environment of the second-chance process
type Builder struct {
	locator *nativehandler.Locator
	environ func() []string
}

// NewBuilder creates a builder inheriting the current process environment
func NewBuilder(locator *nativehandler.Locator) *Builder {
	return NewBuilderWithEnviron(locator, os.Environ)
}

// NewBuilderWithEnviron creates a builder reading the inherited environment from environ
func NewBuilderWithEnviron(locator *nativehandler.Locator, environ func() []string) *Builder {
	if locator == nil {
		locator = nativehandler.NewLocator(nil)
	}
	if environ == nil {
		environ = os.Environ
	}
	return &Builder{
		locator: locator,
		environ: environ,
	}
}

// Build copies the inherited environment and adds the variables the second
// chance process needs to rediscover the crash handler.
func (b *Builder) Build(app ApplicationInfo, tag abi.Tag) *Set {
	inherited := FromEnviron(b.environ())
	env := inherited.Clone()

	ref := b.locator.Resolve(app.NativeLibraryDirectory, app.PackagePath, tag)

	env.Set(ClassPathVar, app.PackagePath)
	env.Set(CrashHandlerVar, ref.Path)
	env.Set(LibraryPathVar, librarySearchPath(app.NativeLibraryDirectory, inherited.Get(LibraryPathVar)))
	env.Set(DataRootVar, DataRoot)

	return env
}

func librarySearchPath(nativeLibraryDirectory string, systemPath string) string {
	entries := []string{
		nativeLibraryDirectory,
		filepath.Dir(nativeLibraryDirectory),
		systemPath,
		LocalDataDirectory,
	}

	parts := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry == "" || entry == "." {
			continue
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// EnsureCrashDirectory returns <databaseRoot>/crashpad, creating it when absent
func EnsureCrashDirectory(fs afero.Fs, databaseRoot string) (string, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	path := databaseRoot + "/" + CrashDirectoryName
	if err := fs.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create crash directory: %w", err)
	}
	return path, nil
}
