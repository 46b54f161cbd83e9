package diskimage

import "fmt"

// ErrorKind identifies one of the error categories from the file system's
// error handling design: an operation either aborts with one of these, or
// (for InvariantViolation, which package altofs only logs or records in a
// CheckReport) only warns.
type ErrorKind string

const (
	KindUnknownGeometry    ErrorKind = "UnknownGeometry"
	KindGeometryMismatch   ErrorKind = "GeometryMismatch"
	KindSecondDriveMissing ErrorKind = "SecondDriveMissing"
	KindBadAddress         ErrorKind = "BadAddress"
	KindOutOfSpace         ErrorKind = "OutOfSpace"
	KindDirectoryFull      ErrorKind = "DirectoryFull"
	KindFileNotFound       ErrorKind = "FileNotFound"
	KindInvariantViolation ErrorKind = "InvariantViolation"
)

// Error is the typed error used across diskimage and altofs. Fields that
// don't apply to a given Kind are left unset (VDA -1, the others at their
// zero value); Error.Error
// only mentions what's set, per the "include the offending VDA, name, or
// field" requirement.
type Error struct {
	Kind  ErrorKind
	VDA   int // -1 when not applicable
	Name  string
	Field string
	Msg   string
	Err   error
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, VDA: -1, Msg: msg}
}

func (e *Error) WithVDA(vda int) *Error {
	e.VDA = vda
	return e
}

func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.VDA >= 0 {
		s += fmt.Sprintf(" (vda=%d)", e.VDA)
	}
	if e.Name != "" {
		s += fmt.Sprintf(" (name=%q)", e.Name)
	}
	if e.Field != "" {
		s += fmt.Sprintf(" (field=%s)", e.Field)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, diskimage.NewError(KindBadAddress, "")) to match
// purely on Kind, which is how callers are expected to test for a kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
