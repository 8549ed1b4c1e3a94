package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Wizard provides an interactive configuration wizard
type Wizard struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewWizard creates a new configuration wizard reading answers from in
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Run runs the interactive configuration wizard starting from base
func (w *Wizard) Run(base *Config) (*Config, error) {
	fmt.Fprintln(w.out, "=== crashkeeper configuration ===")
	fmt.Fprintln(w.out)

	cfg := base
	if cfg == nil {
		cfg = DefaultConfig()
	}
	validator := NewValidator()

	// Submission URL
	for {
		fmt.Fprint(w.out, "Submission URL: ")
		raw, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if raw == "" && cfg.Reporter.SubmissionURL != "" {
			break
		}

		if err := validator.ValidateSubmissionURL(raw); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}

		cfg.Reporter.SubmissionURL = raw
		break
	}

	fmt.Fprintln(w.out)

	// Application
	fmt.Fprintln(w.out, "Application:")

	for {
		fmt.Fprint(w.out, "Native library directory: ")
		dir, err := w.readLine()
		if err != nil {
			return nil, err
		}

		if dir == "" && cfg.Application.NativeLibraryDir != "" {
			break
		}

		if dir == "" {
			fmt.Fprintln(w.out, "Error: native library directory is required")
			continue
		}

		if err := validator.ValidateDirectory("native library directory", dir); err != nil {
			fmt.Fprintf(w.out, "Error: %v\n", err)
			continue
		}

		cfg.Application.NativeLibraryDir = dir
		break
	}

	fmt.Fprint(w.out, "Application package path: ")
	pkg, err := w.readLine()
	if err != nil {
		return nil, err
	}
	if pkg != "" {
		cfg.Application.PackagePath = pkg
	}

	fmt.Fprintln(w.out)

	// Mode
	fmt.Fprintln(w.out, "Crash handler mode:")
	fmt.Fprintln(w.out, "  second-chance - run the handler in a separate process (default)")
	fmt.Fprintln(w.out, "  handler       - use the handler binary next to the native libraries")
	fmt.Fprintf(w.out, "Mode [%s]: ", ModeSecondChance)
	mode, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if mode == "" {
		mode = ModeSecondChance
	}

	if err := validator.ValidateMode(mode); err != nil {
		fmt.Fprintf(w.out, "Warning: %v, using default (%s)\n", err, ModeSecondChance)
		mode = ModeSecondChance
	}

	cfg.Reporter.Mode = mode

	fmt.Fprintln(w.out)

	// Log Level
	fmt.Fprintln(w.out, "Logging:")
	fmt.Fprint(w.out, "Log level (debug/info/warn/error) [info]: ")
	level, err := w.readLine()
	if err != nil {
		return nil, err
	}

	if level != "" {
		if err := validator.ValidateLogLevel(level); err != nil {
			fmt.Fprintf(w.out, "Warning: %v, using default (info)\n", err)
		} else {
			cfg.Logging.Level = level
		}
	}

	fmt.Fprintln(w.out)
	fmt.Fprintln(w.out, "Configuration complete!")

	return cfg, nil
}

func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
