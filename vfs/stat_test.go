package vfs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetadata_FileInfo(t *testing.T) {
	modTime := time.Date(2021, 6, 16, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		meta     Metadata
		wantMode os.FileMode
		wantDir  bool
	}{
		{
			name:     "regular file",
			meta:     Metadata{Type: TypeRegular, Permissions: DefaultPermissions()},
			wantMode: 0644,
		},
		{
			name:     "read-only file",
			meta:     Metadata{Type: TypeRegular, Permissions: Permissions{Read: true}},
			wantMode: 0444,
		},
		{
			name:     "directory",
			meta:     Metadata{Type: TypeDirectory, Permissions: Permissions{Read: true, Write: true, Execute: true}},
			wantMode: os.ModeDir | 0755,
			wantDir:  true,
		},
		{
			name:     "symlink",
			meta:     Metadata{Type: TypeSymlink, Permissions: Permissions{Read: true}},
			wantMode: os.ModeSymlink | 0444,
		},
		{
			name:     "char device",
			meta:     Metadata{Type: TypeCharDevice},
			wantMode: os.ModeDevice | os.ModeCharDevice,
		},
		{
			name:     "block device",
			meta:     Metadata{Type: TypeBlockDevice},
			wantMode: os.ModeDevice,
		},
		{
			name:     "socket",
			meta:     Metadata{Type: TypeSocket},
			wantMode: os.ModeSocket,
		},
		{
			name:     "pipe",
			meta:     Metadata{Type: TypePipe},
			wantMode: os.ModeNamedPipe,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.meta.Size = 42
			tt.meta.ModTime = modTime

			info := tt.meta.FileInfo("name")
			assert.Equal(t, "name", info.Name())
			assert.Equal(t, tt.wantMode, info.Mode())
			assert.Equal(t, tt.wantDir, info.IsDir())
			assert.Equal(t, int64(42), info.Size())
			assert.Equal(t, modTime, info.ModTime())
			assert.Equal(t, tt.meta, info.Sys())
		})
	}
}

func TestFileType_String(t *testing.T) {
	assert.Equal(t, "regular", TypeRegular.String())
	assert.Equal(t, "directory", TypeDirectory.String())
	assert.Equal(t, "unknown", FileType(99).String())
}
