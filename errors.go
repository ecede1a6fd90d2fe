package mxs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// Indicates a signature belonging to another container kind.
	ErrMagic = errors.New("magic mismatch")
	// Indicates a signature that matches neither byte order.
	ErrByteOrder = errors.New("byte order detection failed")
	// Indicates that the data ended before the sentinel.
	ErrTruncated = errors.New("unexpected end of data")
	// Indicates bytes remaining after the sentinel.
	ErrTrailingData = errors.New("trailing bytes after sentinel")
	// Indicates a sentinel byte that is not false.
	ErrSentinel = errors.New("sentinel is not false")
	// Indicates a negative or oversized count.
	ErrCount = errors.New("invalid count")
	// Indicates arrays whose lengths disagree with each other.
	ErrInconsistent = errors.New("inconsistent array lengths")
)

// FormatError wraps an error that occurred while encoding or decoding a
// binary container. It is fatal for that container.
type FormatError struct {
	Kind Kind
	Path string
	// Offset is the byte offset where the error occurred, or -1.
	Offset int64

	Cause error
}

func (err FormatError) Error() string {
	var s strings.Builder
	s.WriteString(err.Kind.String())
	s.WriteString(" format error")
	if err.Path != "" {
		s.WriteString(" in ")
		s.WriteString(err.Path)
	}
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err FormatError) Unwrap() error {
	return err.Cause
}

// ValidationError indicates that a single record could not be built. The
// caller decides whether to skip the object or abort the run.
type ValidationError struct {
	Object string

	Cause error
}

func (err ValidationError) Error() string {
	if err.Object == "" {
		return "validation error: " + err.Cause.Error()
	}
	return fmt.Sprintf("validation error for %q: %s", err.Object, err.Cause.Error())
}

func (err ValidationError) Unwrap() error {
	return err.Cause
}

// Invalid returns a ValidationError for object with a formatted cause.
func Invalid(object string, format string, args ...interface{}) error {
	return ValidationError{Object: object, Cause: fmt.Errorf(format, args...)}
}

// IsValidation reports whether err is recoverable at object granularity.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// Errors is a list of errors.
type Errors []error

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "no errors"
	case 1:
		return errs[0].Error()
	default:
		var buf strings.Builder
		buf.WriteString("multiple errors:")
		for _, err := range errs {
			buf.WriteString("\n\t")
			buf.WriteString(strings.ReplaceAll(err.Error(), "\n", "\n\t"))
		}
		return buf.String()
	}
}

func (errs Errors) Unwrap() []error { return errs }

// Append returns errs with each non-nil err appended to it.
func (errs Errors) Append(err ...error) Errors {
	for _, err := range err {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Return returns nil if errs is empty.
func (errs Errors) Return() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
