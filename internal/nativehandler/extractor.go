package nativehandler

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Extractor unpacks a library referenced inside the application package
type Extractor struct {
	fs     afero.Fs
	logger zerolog.Logger
}

// NewExtractor creates an extractor backed by fs
func NewExtractor(fs afero.Fs, logger zerolog.Logger) *Extractor {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Extractor{
		fs:     fs,
		logger: logger.With().Str("component", "handler-extractor").Logger(),
	}
}

// Extract copies the entry named by a <package>!/<entry> reference into dir and
// returns the extracted file path. A previously extracted copy of the same
// size is reused.
func (e *Extractor) Extract(reference string, dir string) (string, error) {
	packagePath, entry, err := ParseReference(reference)
	if err != nil {
		return "", err
	}

	pkg, err := e.fs.Open(packagePath)
	if err != nil {
		return "", fmt.Errorf("%w: open package: %v", ErrHandlerBinaryMissing, err)
	}
	defer pkg.Close()

	info, err := pkg.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat package: %w", err)
	}

	reader, err := zip.NewReader(pkg, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to read package: %w", err)
	}

	var file *zip.File
	for _, f := range reader.File {
		if f.Name == entry {
			file = f
			break
		}
	}
	if file == nil {
		return "", fmt.Errorf("%w: %s not found in %s", ErrHandlerBinaryMissing, entry, packagePath)
	}

	if err := e.fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	target := filepath.Join(dir, path.Base(entry))
	if existing, err := e.fs.Stat(target); err == nil && uint64(existing.Size()) == file.UncompressedSize64 {
		return target, nil
	}

	if err := e.copyEntry(file, target); err != nil {
		return "", err
	}

	e.logger.Debug().
		Str("package", packagePath).
		Str("entry", entry).
		Str("target", target).
		Msg("Extracted crash handler from package")

	return target, nil
}

func (e *Extractor) copyEntry(file *zip.File, target string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open package entry: %w", err)
	}
	defer src.Close()

	tmp := target + ".tmp"
	dst, err := e.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return fmt.Errorf("failed to create extracted file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		e.fs.Remove(tmp)
		return fmt.Errorf("failed to extract package entry: %w", err)
	}
	if err := dst.Close(); err != nil {
		e.fs.Remove(tmp)
		return fmt.Errorf("failed to close extracted file: %w", err)
	}

	if err := e.fs.Chmod(tmp, 0755); err != nil {
		return fmt.Errorf("failed to mark handler executable: %w", err)
	}
	return e.fs.Rename(tmp, target)
}
