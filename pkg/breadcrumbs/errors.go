package breadcrumbs

import "errors"

var (
	// ErrInvalidLimit is returned when the per-file line limit is not positive
	ErrInvalidLimit = errors.New("maximum breadcrumbs per file must be positive")

	// ErrRotation is returned when the active file cannot be demoted or reopened
	ErrRotation = errors.New("breadcrumb rotation failed")

	// ErrNotAppended is returned by Write when an enabled logger drops a line
	ErrNotAppended = errors.New("breadcrumb line was not appended")
)
