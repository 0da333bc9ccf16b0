// Package extensionerror defines the single discriminated error family used
// across the extension lifecycle engine.
package extensionerror

import "fmt"

// Kind discriminates the category of an ExtensionError.
type Kind string

const (
	InvalidExtDirName     Kind = "InvalidExtDirName"
	NoMatchingVersion     Kind = "NoMatchingVersion"
	DowngradeDisallowed   Kind = "DowngradeDisallowed"
	UnknownGoalState      Kind = "UnknownGoalState"
	DownloadFailed        Kind = "DownloadFailed"
	NoPackageUris         Kind = "NoPackageUris"
	CommandTimeout        Kind = "CommandTimeout"
	CommandNonZeroExit    Kind = "CommandNonZeroExit"
	LaunchFailed          Kind = "LaunchFailed"
	MalformedManifest     Kind = "MalformedManifest"
	MalformedStatus       Kind = "MalformedStatus"
	MalformedHeartbeat    Kind = "MalformedHeartbeat"
	MissingHeartbeat      Kind = "MissingHeartbeat"
	IoError               Kind = "IoError"
	InvalidAggregateStatus Kind = "InvalidAggregateStatus"
)

// Error is the engine's single error type, discriminated by Kind and
// carrying the operation that was in flight when it occurred.
type Error struct {
	Kind      Kind
	Operation string
	Name      string
	Version   string
	Err       error
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("%s", e.Kind)
	if e.Name != "" {
		prefix = fmt.Sprintf("%s[%s-%s]", e.Kind, e.Name, e.Version)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Operation, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Operation)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an Error of the given kind for the named operation.
func New(kind Kind, operation string, err error) *Error {
	return &Error{Kind: kind, Operation: operation, Err: err}
}

// Newf constructs an Error of the given kind with a formatted operation
// detail instead of a wrapped error.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Operation: fmt.Sprintf(format, args...)}
}

// WithInstance returns a copy of e annotated with the extension name and
// version it occurred against.
func (e *Error) WithInstance(name, version string) *Error {
	cp := *e
	cp.Name = name
	cp.Version = version
	return &cp
}
