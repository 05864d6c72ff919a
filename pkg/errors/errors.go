// Package errors defines AppError, the coded error carried by every MAGI
// layer. The CLI prints the code, the message and the offending input
// (Detail) so a failed run names what it choked on.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const maxFrames = 32

// callers renders the stack above the constructor that called it.
// Runtime frames are dropped.
func callers(skip int) string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for more := true; more; {
		var f runtime.Frame
		f, more = frames.Next()
		if strings.Contains(f.File, "runtime/") {
			continue
		}
		fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
	}
	return sb.String()
}

// AppError is a coded failure. It unwraps to Cause, so the standard
// errors.Is and errors.As see through it.
//
//	return errors.New(errors.ErrCodeInvalidInChIKey, "not a valid InChIKey").WithDetail(key)
//	return errors.Wrap(err, errors.ErrCodeExternalTool, "blastp failed")
type AppError struct {
	Code    ErrorCode
	Message string
	// Detail names the offending input: an identifier, a column or a path.
	Detail string
	Cause  error
	// Stack is recorded at construction and kept out of Error().
	Stack string
}

// Error renders "[code] message: detail: cause", skipping empty parts.
func (e *AppError) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail returns a copy with Detail set. A nil receiver stays nil.
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Detail = detail
	return &c
}

// WithCause returns a copy with Cause set. A nil receiver stays nil.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	c := *e
	c.Cause = err
	return &c
}

func build(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause, Stack: callers(2)}
}

// New returns an AppError with no cause.
func New(code ErrorCode, message string) *AppError {
	return build(code, message, nil)
}

// InvalidParam is New with ErrCodeValidation.
func InvalidParam(message string) *AppError {
	return build(ErrCodeValidation, message, nil)
}

// Wrap attaches code and message to err. A nil err yields nil, and
// CodeUnknown inherits the code of an AppError already in the chain.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		code = GetCode(err)
	}
	return build(code, message, err)
}

// find returns the first AppError in err's chain satisfying match.
func find(err error, match func(*AppError) bool) *AppError {
	for err != nil {
		var ae *AppError
		if errors.As(err, &ae) {
			if match(ae) {
				return ae
			}
			err = ae.Cause
			continue
		}
		err = errors.Unwrap(err)
	}
	return nil
}

// IsCode reports whether err's chain holds an AppError with code.
func IsCode(err error, code ErrorCode) bool {
	return find(err, func(ae *AppError) bool { return ae.Code == code }) != nil
}

// IsNotFound reports a lookup miss. Misses are recoverable: callers
// treat them as "no result" and carry on.
func IsNotFound(err error) bool {
	return find(err, func(ae *AppError) bool {
		switch ae.Code {
		case ErrCodeNotFound, ErrCodeCompoundNotFound, ErrCodeGroupNotFound, ErrCodeSequenceNotFound:
			return true
		}
		return false
	}) != nil
}

// GetCode returns the code of the outermost AppError, CodeOK for nil and
// CodeUnknown for foreign errors.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
