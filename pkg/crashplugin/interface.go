package crashplugin

import (
	"context"
)

// Capability is the native crash handling boundary. The host never unwinds
// stacks or writes dumps itself; it hands a manifest to a Capability and asks
// it to capture crashes.
type Capability interface {
	// HandleCrash captures a crash from inside the second-chance process.
	// args is the raw argument list the platform passed to that process.
	HandleCrash(ctx context.Context, args []string) (bool, error)

	// InitializeCrashHandler installs a standalone handler executable
	InitializeCrashHandler(ctx context.Context, req HandlerRequest) (bool, error)

	// InitializeSecondChanceHandler installs a handler that re-enters the
	// application package in a fresh process with the given environment
	InitializeSecondChanceHandler(ctx context.Context, req SecondChanceRequest) (bool, error)

	// AddAttribute attaches an attribute to every future crash report
	AddAttribute(ctx context.Context, key, value string) error
}

// UnwindingMode selects how the native layer walks crashed stacks
type UnwindingMode int

const (
	UnwindingLocal UnwindingMode = iota
	UnwindingRemote
	UnwindingLocalDumpWithoutCrash
	UnwindingRemoteDumpWithoutCrash
	UnwindingLocalContext
)

func (m UnwindingMode) String() string {
	switch m {
	case UnwindingLocal:
		return "local"
	case UnwindingRemote:
		return "remote"
	case UnwindingLocalDumpWithoutCrash:
		return "local-dump-without-crash"
	case UnwindingRemoteDumpWithoutCrash:
		return "remote-dump-without-crash"
	case UnwindingLocalContext:
		return "local-context"
	default:
		return "unknown"
	}
}

// HandlerRequest configures a standalone crash handler executable
type HandlerRequest struct {
	SubmissionURL       string
	DatabasePath        string
	HandlerPath         string
	AttributeKeys       []string
	AttributeValues     []string
	AttachmentPaths     []string
	ClientSideUnwinding bool
	UnwindingMode       UnwindingMode
}

// SecondChanceRequest configures a handler launched from the application
// package with a prepared environment
type SecondChanceRequest struct {
	SubmissionURL   string
	DatabasePath    string
	ClassPath       string
	AttributeKeys   []string
	AttributeValues []string
	AttachmentPaths []string
	Environment     []string
}
