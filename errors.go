package casc

import (
	"errors"
	"fmt"
)

// Code identifies the closed set of error kinds a failed operation can
// report, mirroring the ERROR_* surface of spec.md §6.4.
type Code uint8

const (
	CodeFileNotFound Code = iota + 1
	CodeBadFormat
	CodeFileCorrupt
	CodeNotEnoughMemory
	CodeInvalidParameter
	CodeInvalidHandle
	CodeInsufficientBuffer
	CodeCancelled
	CodeNotSupported
)

func (c Code) String() string {
	switch c {
	case CodeFileNotFound:
		return "file not found"
	case CodeBadFormat:
		return "bad format"
	case CodeFileCorrupt:
		return "file corrupt"
	case CodeNotEnoughMemory:
		return "not enough memory"
	case CodeInvalidParameter:
		return "invalid parameter"
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeInsufficientBuffer:
		return "insufficient buffer"
	case CodeCancelled:
		return "cancelled"
	case CodeNotSupported:
		return "not supported"
	default:
		return "unknown"
	}
}

// Error wraps a failed operation with the stage it failed in and the
// closed-set Code a caller can match with errors.Is against the Err*
// sentinels below, following the teacher's fs.PathError-style wrapping
// generalized since this domain has no filesystem path at the point most
// errors occur (SPEC_FULL.md §7).
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("casc: %s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("casc: %s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFileNotFound) match an *Error whose Code
// corresponds, without requiring the sentinel itself to appear in the
// wrapped chain.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

var codeSentinels = map[Code]error{
	CodeFileNotFound:       ErrFileNotFound,
	CodeBadFormat:          ErrBadFormat,
	CodeFileCorrupt:        ErrFileCorrupt,
	CodeNotEnoughMemory:    ErrNotEnoughMemory,
	CodeInvalidParameter:   ErrInvalidParameter,
	CodeInvalidHandle:      ErrInvalidHandle,
	CodeInsufficientBuffer: ErrInsufficientBuffer,
	CodeCancelled:          ErrCancelled,
	CodeNotSupported:       ErrNotSupported,
}

// Sentinel errors callers match against with errors.Is, per §6.4's closed
// error surface.
var (
	ErrFileNotFound       = errors.New("casc: file not found")
	ErrBadFormat          = errors.New("casc: bad format")
	ErrFileCorrupt        = errors.New("casc: file corrupt")
	ErrNotEnoughMemory    = errors.New("casc: not enough memory")
	ErrInvalidParameter   = errors.New("casc: invalid parameter")
	ErrInvalidHandle      = errors.New("casc: invalid handle")
	ErrInsufficientBuffer = errors.New("casc: insufficient buffer")
	ErrCancelled          = errors.New("casc: cancelled")
	ErrNotSupported       = errors.New("casc: not supported")
)

func wrapErr(op string, code Code, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}
