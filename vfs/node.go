package vfs

import (
	"time"
)

// FileType is the kind of a filesystem node.
type FileType uint8

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeCharDevice
	TypeBlockDevice
	TypeSymlink
	TypeSocket
	TypePipe
)

func (t FileType) String() string {
	switch t {
	case TypeRegular:
		return "regular"
	case TypeDirectory:
		return "directory"
	case TypeCharDevice:
		return "char-device"
	case TypeBlockDevice:
		return "block-device"
	case TypeSymlink:
		return "symlink"
	case TypeSocket:
		return "socket"
	case TypePipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// Permissions of a node.
type Permissions struct {
	Read    bool
	Write   bool
	Execute bool
}

// DefaultPermissions are used for newly created nodes (read/write).
func DefaultPermissions() Permissions {
	return Permissions{Read: true, Write: true}
}

// Metadata describes a node.
type Metadata struct {
	Type        FileType
	Size        int64
	Permissions Permissions

	Hidden bool
	System bool

	CreateTime time.Time
	ModTime    time.Time
	AccessTime time.Time
}

// IsDir reports whether the metadata describes a directory.
func (m Metadata) IsDir() bool {
	return m.Type == TypeDirectory
}

// DirEntry is a single entry returned by DirOps.ReadDir.
type DirEntry struct {
	Name  string
	Inode uint64
	Type  FileType
}

// StatFS describes the capacity of a filesystem.
type StatFS struct {
	BlockSize   uint32
	TotalBlocks uint64
	FreeBlocks  uint64
	Label       string
}

// FileOps are the operations of a regular file.
type FileOps interface {
	// ReadAt reads len(p) bytes starting at off. Reading at or past the end of
	// the file returns 0 and no error.
	ReadAt(p []byte, off int64) (int, error)
	// WriteAt writes p starting at off and extends the file if needed.
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	Sync() error
}

// DirOps are the operations of a directory.
type DirOps interface {
	ReadDir() ([]DirEntry, error)
	Lookup(name string) (Node, error)
	Create(name string, perm Permissions) (Node, error)
	Mkdir(name string, perm Permissions) (Node, error)
	Unlink(name string) error
	// Rename renames an entry inside this directory.
	Rename(oldName, newName string) error
}

// Node is a filesystem agnostic handle of a file or directory.
// A node supports exactly the capability matching its Type; the As methods
// return false for the other one.
//
// Generated mock using mockgen:
//
//	mockgen -destination=mock_node.go -package=vfs github.com/aligator/fatvfs/vfs Node,Filesystem
type Node interface {
	Type() FileType
	Metadata() (Metadata, error)
	AsFile() (FileOps, bool)
	AsDir() (DirOps, bool)
}

// Filesystem is a mountable filesystem instance.
type Filesystem interface {
	Root() Node
	StatFS() (StatFS, error)
	Sync() error
	Unmount() error
}
