package vfs_test

import (
	"bytes"
	"io"
	"os"
	"testing"
	"testing/iotest"

	"github.com/aligator/fatvfs/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_readWrite(t *testing.T) {
	v := newVfs(t)

	f, err := v.Open("/file.txt", vfs.OpenRead|vfs.OpenWrite|vfs.OpenCreate)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "/file.txt", f.Name())

	n, err := f.WriteString("hello world")
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	// The offset is behind the written data.
	buf := make([]byte, 4)
	n, err = f.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	pos, err := f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), pos)

	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "worl", string(buf[:n]))

	_, err = f.WriteAt([]byte("W"), 6)
	require.NoError(t, err)

	n, err = f.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, " Wor", string(buf[:n]))

	n, err = f.ReadAt(buf, 9)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)

	meta, err := f.Metadata()
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Size)

	require.NoError(t, f.Truncate(5))
	require.NoError(t, f.Sync())

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, "file.txt", info.Name())
	assert.Equal(t, int64(5), info.Size())
	assert.False(t, info.IsDir())
}

func TestFile_iotest(t *testing.T) {
	v := newVfs(t)

	content := bytes.Repeat([]byte("0123456789abcdef"), 700)
	writeFile(t, v, "/data.bin", string(content))

	f, err := v.Open("/data.bin", vfs.OpenRead)
	require.NoError(t, err)
	defer f.Close()

	assert.NoError(t, iotest.TestReader(f, content))
}

func TestFile_Seek(t *testing.T) {
	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr error
	}{
		{name: "start", offset: 3, whence: io.SeekStart, want: 3},
		{name: "past the end", offset: 100, whence: io.SeekStart, want: 100},
		{name: "negative start", offset: -1, whence: io.SeekStart, wantErr: vfs.ErrInvalidArgument},
		{name: "current", offset: 2, whence: io.SeekCurrent, want: 6},
		{name: "before start from current", offset: -10, whence: io.SeekCurrent, want: 0},
		{name: "end", offset: -2, whence: io.SeekEnd, want: 8},
		{name: "before start from end", offset: -20, whence: io.SeekEnd, want: 0},
		{name: "invalid whence", offset: 0, whence: 42, wantErr: vfs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVfs(t)
			writeFile(t, v, "/file.txt", "0123456789")

			f, err := v.Open("/file.txt", vfs.OpenRead)
			require.NoError(t, err)
			defer f.Close()

			_, err = f.Seek(4, io.SeekStart)
			require.NoError(t, err)

			got, err := f.Seek(tt.offset, tt.whence)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFile_writePastEnd(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/file.txt", "abc")

	f, err := v.Open("/file.txt", vfs.OpenWrite)
	require.NoError(t, err)

	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	_, err = f.WriteString("xyz")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Equal(t, "abc\x00\x00\x00xyz", readFile(t, v, "/file.txt"))
}

func TestFile_append(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/log.txt", "first\n")

	f, err := v.Open("/log.txt", vfs.OpenWrite|vfs.OpenAppend)
	require.NoError(t, err)

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)

	_, err = f.WriteAt([]byte("x"), 0)
	assert.ErrorIs(t, err, vfs.ErrInvalidArgument)

	require.NoError(t, f.Close())
	assert.Equal(t, "first\nsecond\n", readFile(t, v, "/log.txt"))
}

func TestFile_access(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/file.txt", "content")

	readOnly, err := v.Open("/file.txt", vfs.OpenRead)
	require.NoError(t, err)
	defer readOnly.Close()

	_, err = readOnly.WriteString("x")
	assert.ErrorIs(t, err, vfs.ErrPermissionDenied)
	assert.ErrorIs(t, readOnly.Truncate(0), vfs.ErrPermissionDenied)

	writeOnly, err := v.Open("/file.txt", vfs.OpenWrite)
	require.NoError(t, err)
	defer writeOnly.Close()

	_, err = writeOnly.Read(make([]byte, 4))
	assert.ErrorIs(t, err, vfs.ErrPermissionDenied)

	_, err = readOnly.ReadAt(make([]byte, 4), -1)
	assert.ErrorIs(t, err, vfs.ErrInvalidArgument)
	assert.ErrorIs(t, writeOnly.Truncate(-1), vfs.ErrInvalidArgument)
}

func TestFile_closed(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/file.txt", "content")

	f, err := v.Open("/file.txt", vfs.OpenRead|vfs.OpenWrite)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = f.Read(make([]byte, 4))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = f.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = f.Stat()
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.ErrorIs(t, f.Sync(), os.ErrClosed)
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}

func TestFile_removedWhileOpen(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/file.txt", "content")

	f, err := v.Open("/file.txt", vfs.OpenRead)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, v.Remove("/file.txt"))

	_, err = f.Read(make([]byte, 4))
	assert.ErrorIs(t, err, vfs.ErrNotFound)
}

func TestFile_Readdir(t *testing.T) {
	v := newVfs(t)
	for _, name := range []string{"/a.txt", "/b.txt", "/c.txt"} {
		writeFile(t, v, name, name)
	}
	require.NoError(t, v.Mkdir("/d"))

	dir, err := v.OpenDir("/")
	require.NoError(t, err)
	defer dir.Close()

	infos, err := dir.Readdir(3)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "a.txt", infos[0].Name())
	assert.Equal(t, int64(6), infos[0].Size())

	names, err := dir.Readdirnames(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, names)

	infos, err = dir.Readdir(3)
	assert.Empty(t, infos)
	assert.ErrorIs(t, err, io.EOF)

	infos, err = dir.Readdir(-1)
	assert.NoError(t, err)
	assert.Empty(t, infos)

	// Rewinding reads the directory again.
	_, err = dir.Seek(0, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, v.Remove("/b.txt"))

	names, err = dir.Readdirnames(-1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "c.txt", "d"}, names)

	_, err = dir.Seek(1, io.SeekStart)
	assert.ErrorIs(t, err, vfs.ErrIsDirectory)

	_, err = dir.Read(make([]byte, 4))
	assert.ErrorIs(t, err, vfs.ErrIsDirectory)
	_, err = dir.Write([]byte("x"))
	assert.ErrorIs(t, err, vfs.ErrIsDirectory)

	info, err := dir.Stat()
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NoError(t, dir.Sync())
}

func TestFile_Readdir_mountPoint(t *testing.T) {
	v := newVfs(t)
	require.NoError(t, v.Mkdir("/mnt"))
	require.NoError(t, v.Mount("/mnt", newFAT(t, "OTHER")))

	dir, err := v.OpenDir("/")
	require.NoError(t, err)
	defer dir.Close()

	infos, err := dir.Readdir(-1)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "mnt", infos[0].Name())
	assert.True(t, infos[0].IsDir())
	// The root of the mounted volume has no timestamps.
	assert.True(t, infos[0].ModTime().IsZero())
}

func TestFile_notADirectory(t *testing.T) {
	v := newVfs(t)
	writeFile(t, v, "/file.txt", "content")

	_, err := v.OpenDir("/file.txt")
	assert.ErrorIs(t, err, vfs.ErrNotDirectory)

	f, err := v.Open("/file.txt", vfs.OpenRead)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Readdir(-1)
	assert.ErrorIs(t, err, vfs.ErrNotDirectory)
}
