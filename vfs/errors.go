package vfs

import (
	"errors"
	"syscall"
)

// Error is a filesystem error kind.
// Every kind carries the closest syscall.Errno so errors.Is also matches the
// io/fs sentinels (fs.ErrNotExist, fs.ErrExist, fs.ErrPermission, ...).
type Error struct {
	msg   string
	errno syscall.Errno
}

func (e *Error) Error() string {
	return e.msg
}

// Errno returns the syscall error number of the kind.
func (e *Error) Errno() syscall.Errno {
	return e.errno
}

func (e *Error) Is(target error) bool {
	if errno, ok := target.(syscall.Errno); ok {
		return errno == e.errno
	}
	return e.errno.Is(target)
}

// These are all error kinds reported by the filesystem layer.
// They are usually wrapped by a checkpoint, so always test with errors.Is.
var (
	ErrNotFound         = &Error{"not found", syscall.ENOENT}
	ErrPermissionDenied = &Error{"permission denied", syscall.EACCES}
	ErrExists           = &Error{"already exists", syscall.EEXIST}
	ErrNotDirectory     = &Error{"not a directory", syscall.ENOTDIR}
	ErrIsDirectory      = &Error{"is a directory", syscall.EISDIR}
	ErrNotEmpty         = &Error{"directory not empty", syscall.ENOTEMPTY}
	ErrNoSpace          = &Error{"no space left on device", syscall.ENOSPC}
	ErrIO               = &Error{"i/o error", syscall.EIO}
	ErrInvalidPath      = &Error{"invalid path", syscall.EINVAL}
	ErrReadOnly         = &Error{"read-only filesystem", syscall.EROFS}
	ErrNotSupported     = &Error{"operation not supported", syscall.ENOTSUP}
	ErrBusy             = &Error{"resource busy", syscall.EBUSY}
	ErrNameTooLong      = &Error{"file name too long", syscall.ENAMETOOLONG}
	ErrInvalidArgument  = &Error{"invalid argument", syscall.EINVAL}
)

var kinds = []*Error{
	ErrNotFound,
	ErrPermissionDenied,
	ErrExists,
	ErrNotDirectory,
	ErrIsDirectory,
	ErrNotEmpty,
	ErrNoSpace,
	ErrIO,
	ErrInvalidPath,
	ErrReadOnly,
	ErrNotSupported,
	ErrBusy,
	ErrNameTooLong,
	ErrInvalidArgument,
}

// KindOf returns the first error kind found in the chain of err or nil if err
// carries none.
func KindOf(err error) *Error {
	if err == nil {
		return nil
	}

	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
