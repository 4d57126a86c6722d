package vfs

import (
	"os"

	"github.com/aligator/fatvfs/checkpoint"
)

// OpenFlag is the bit set passed to Vfs.Open.
type OpenFlag uint32

const (
	OpenRead OpenFlag = 1 << iota
	OpenWrite
	// OpenCreate creates the file if it does not exist.
	OpenCreate
	// OpenExclusive together with OpenCreate fails if the file exists.
	OpenExclusive
	// OpenTruncate truncates the file to 0 when it is opened.
	OpenTruncate
	// OpenAppend makes every write start at the end of the file.
	OpenAppend
)

// Has reports whether all bits of o are set.
func (f OpenFlag) Has(o OpenFlag) bool {
	return f&o == o
}

// writes reports whether an existing file is modified. OpenCreate only writes
// when the file is missing.
func (f OpenFlag) writes() bool {
	return f&(OpenWrite|OpenTruncate|OpenAppend) != 0
}

func (f OpenFlag) validate() error {
	if f&(OpenRead|OpenWrite) == 0 {
		return checkpoint.Errorf(ErrInvalidArgument, "neither read nor write access requested")
	}
	if f.Has(OpenExclusive) && !f.Has(OpenCreate) {
		return checkpoint.Errorf(ErrInvalidArgument, "exclusive without create")
	}
	if f&(OpenTruncate|OpenAppend) != 0 && !f.Has(OpenWrite) {
		return checkpoint.Errorf(ErrInvalidArgument, "truncate and append need write access")
	}
	return nil
}

// FlagsFromOS converts os.OpenFile flags.
func FlagsFromOS(flag int) OpenFlag {
	var result OpenFlag
	switch flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR) {
	case os.O_RDONLY:
		result = OpenRead
	case os.O_WRONLY:
		result = OpenWrite
	default:
		result = OpenRead | OpenWrite
	}

	if flag&os.O_CREATE != 0 {
		result |= OpenCreate
	}
	if flag&os.O_EXCL != 0 {
		result |= OpenExclusive
	}
	if flag&os.O_TRUNC != 0 {
		result |= OpenTruncate
	}
	if flag&os.O_APPEND != 0 {
		result |= OpenAppend
	}
	return result
}
