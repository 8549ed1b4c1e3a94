package nativehandler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/harun/crashkeeper/internal/abi"
	"github.com/spf13/afero"
)

const (
	// LibraryFileName is the crash handler library loaded by the second-chance process
	LibraryFileName = "libbacktrace-native.so"

	// HandlerFileName is the standalone crash handler executable
	HandlerFileName = "libcrashpad_handler.so"

	// packageSeparator splits a package path from the entry inside it
	packageSeparator = "!/"
)

// Reference describes where the crash handler library lives
type Reference struct {
	NativeLibraryDirectory string
	PackagePath            string
	LibraryFileName        string
	ABI                    abi.Tag

	// Path is the value handed to the second-chance process
	Path string

	// Embedded is true when Path points inside the compressed package
	Embedded bool
}

func (r Reference) String() string {
	return r.Path
}

// Locator resolves the on-disk location of the crash handler library
type Locator struct {
	fs       afero.Fs
	fileName string
}

// NewLocator creates a locator for LibraryFileName backed by fs
func NewLocator(fs afero.Fs) *Locator {
	return NewLocatorFor(fs, LibraryFileName)
}

// NewLocatorFor creates a locator for an arbitrary library file name
func NewLocatorFor(fs afero.Fs, fileName string) *Locator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Locator{fs: fs, fileName: fileName}
}

// Resolve returns the extracted library when the platform installer already
// unpacked it, and a package-internal reference otherwise. The only I/O is a
// single existence check.
func (l *Locator) Resolve(nativeLibraryDirectory, packagePath string, tag abi.Tag) Reference {
	ref := Reference{
		NativeLibraryDirectory: nativeLibraryDirectory,
		PackagePath:            packagePath,
		LibraryFileName:        l.fileName,
		ABI:                    tag,
	}

	candidate := nativeLibraryDirectory + "/" + l.fileName
	if l.isFile(candidate) {
		ref.Path = candidate
		return ref
	}

	ref.Path = EmbeddedPath(packagePath, tag, l.fileName)
	ref.Embedded = true
	return ref
}

// Exists reports whether path names a regular file
func (l *Locator) Exists(path string) bool {
	return l.isFile(path)
}

func (l *Locator) isFile(path string) bool {
	info, err := l.fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EmbeddedPath builds the <package>!/lib/<abi>/<name> form
func EmbeddedPath(packagePath string, tag abi.Tag, fileName string) string {
	return fmt.Sprintf("%s%slib/%s/%s", packagePath, packageSeparator, tag, fileName)
}

// ParseReference splits a package-internal path into the package path and
// the entry name inside the package
func ParseReference(path string) (packagePath string, entry string, err error) {
	idx := strings.Index(path, packageSeparator)
	if idx <= 0 {
		return "", "", fmt.Errorf("%w: %s", ErrNotEmbedded, path)
	}
	entry = path[idx+len(packageSeparator):]
	if entry == "" {
		return "", "", fmt.Errorf("%w: empty entry in %s", ErrNotEmbedded, path)
	}
	return path[:idx], filepath.ToSlash(entry), nil
}

// IsEmbedded reports whether path is a package-internal reference
func IsEmbedded(path string) bool {
	_, _, err := ParseReference(path)
	return err == nil
}
