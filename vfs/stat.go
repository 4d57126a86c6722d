package vfs

import (
	"os"
	"time"
)

// FileInfo returns an os.FileInfo for the metadata of a node called name.
func (m Metadata) FileInfo(name string) os.FileInfo {
	return metadataFileInfo{name: name, meta: m}
}

type metadataFileInfo struct {
	name string
	meta Metadata
}

func (i metadataFileInfo) Name() string {
	return i.name
}

func (i metadataFileInfo) Size() int64 {
	return i.meta.Size
}

func (i metadataFileInfo) Mode() os.FileMode {
	var mode os.FileMode
	if i.meta.Permissions.Read {
		mode |= 0444
	}
	if i.meta.Permissions.Write {
		mode |= 0200
	}
	if i.meta.Permissions.Execute {
		mode |= 0111
	}

	switch i.meta.Type {
	case TypeDirectory:
		mode |= os.ModeDir
	case TypeSymlink:
		mode |= os.ModeSymlink
	case TypeCharDevice:
		mode |= os.ModeDevice | os.ModeCharDevice
	case TypeBlockDevice:
		mode |= os.ModeDevice
	case TypeSocket:
		mode |= os.ModeSocket
	case TypePipe:
		mode |= os.ModeNamedPipe
	}
	return mode
}

func (i metadataFileInfo) ModTime() time.Time {
	return i.meta.ModTime
}

func (i metadataFileInfo) IsDir() bool {
	return i.meta.IsDir()
}

// Sys returns the Metadata.
func (i metadataFileInfo) Sys() interface{} {
	return i.meta
}
