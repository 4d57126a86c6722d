// Package checkpoint decorates errors with the file and line they passed through,
// which results in something similar to a stacktrace.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From wraps an error by a new checkpoint which only adds the caller information.
// It returns nil, if err == nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	return newCheckpoint(err, nil)
}

// Wrap adds a checkpoint to prev which is further described by err.
// Returns nil if prev == nil.
//
// Typically err is a sentinel which callers test for while prev is the cause:
//
//	n, err := device.Read(buf)
//	if err != nil {
//		return checkpoint.Wrap(err, vfs.ErrIO)
//	}
//
// Both errors.Is(result, vfs.ErrIO) and errors.Is(result, <cause>) hold.
func Wrap(prev, err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if prev == io.EOF {
		return io.EOF
	}

	if prev == nil {
		return nil
	}

	return newCheckpoint(prev, err)
}

// Errorf creates a checkpoint for kind without an underlying cause. The message
// is formatted like fmt.Sprintf and appended to the message of kind.
func Errorf(kind error, format string, args ...interface{}) error {
	return newCheckpoint(nil, fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...))
}

// Wrapf is like Wrap but describes the checkpoint with a formatted message
// which still matches kind.
func Wrapf(prev, kind error, format string, args ...interface{}) error {
	if prev == io.EOF {
		return io.EOF
	}

	if prev == nil {
		return nil
	}

	return newCheckpoint(prev, fmt.Errorf("%w: "+format, append([]interface{}{kind}, args...)...))
}

func newCheckpoint(prev, err error) *checkpoint {
	// Skip newCheckpoint and the exported constructor.
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	// err describes this checkpoint, may be nil.
	err error
	// prev is the cause, may be nil.
	prev error

	callerOk bool
	file     string
	line     int
}

func (e *checkpoint) location() string {
	if e.callerOk {
		return fmt.Sprintf("%s:%d", e.file, e.line)
	}
	return "unknown"
}

func (e *checkpoint) Error() string {
	var b strings.Builder
	b.WriteString("File: ")
	b.WriteString(e.location())

	if e.err != nil {
		b.WriteString("\n\t")
		b.WriteString(strings.ReplaceAll(e.err.Error(), "\n", "\n\t"))
	}

	if e.prev == nil {
		return b.String()
	}

	// Use different formatting for the prev error if it was not also a checkpoint.
	prevErrString := e.prev.Error()
	if _, ok := e.prev.(*checkpoint); !ok {
		prevErrString = "File: unknown\n\t" + strings.ReplaceAll(prevErrString, "\n", "\n\t")
	}

	b.WriteString("\n")
	b.WriteString(prevErrString)
	return b.String()
}

func (e *checkpoint) Unwrap() error {
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	if e.err == nil {
		return false
	}
	return errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	if e.err == nil {
		return false
	}
	return errors.As(e.err, target)
}
