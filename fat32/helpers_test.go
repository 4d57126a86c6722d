package fat32

import (
	"testing"
	"time"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	// smallImage is big enough for 1018 clusters of 4096 bytes.
	smallImage = 4 << 20
	mebibyte   = 1 << 20
)

var vfsRW = vfs.DefaultPermissions()

// testClock is a fixed time source, 2021-06-15 14:30:20.
func testClock() time.Time {
	return time.Date(2021, time.June, 15, 14, 30, 20, 0, time.UTC)
}

// testLogger returns a logger which only records the entries in the hook.
func testLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger), hook
}

// newTestDevice creates an in-memory image with 512 byte sectors.
func newTestDevice(t *testing.T, size int64) *blockdev.ImageDevice {
	t.Helper()

	dev, err := blockdev.CreateImage(afero.NewMemMapFs(), "test.img", size, 512)
	require.NoError(t, err)
	return dev
}

// formatTestDevice creates an image formatted with 4096 byte clusters.
func formatTestDevice(t *testing.T, size int64) *blockdev.ImageDevice {
	t.Helper()

	dev := newTestDevice(t, size)
	require.NoError(t, Format(dev, FormatOptions{
		Label:             "TESTVOL",
		SectorsPerCluster: 8,
		VolumeID:          0x12345678,
	}))
	return dev
}

// mountTestDevice mounts dev with a fixed clock and a recording logger.
func mountTestDevice(t *testing.T, dev blockdev.BlockDevice, opts ...Option) (*FileSystem, *test.Hook) {
	t.Helper()

	log, hook := testLogger()
	fs, err := Mount(dev, append([]Option{WithLogger(log), WithClock(testClock)}, opts...)...)
	require.NoError(t, err)
	return fs, hook
}

// newTestFS formats a small image and mounts it.
func newTestFS(t *testing.T, opts ...Option) *FileSystem {
	t.Helper()

	fs, _ := mountTestDevice(t, formatTestDevice(t, smallImage), opts...)
	return fs
}

// rootDir returns the DirOps of the root directory.
func rootDir(t *testing.T, fs *FileSystem) *dirNode {
	t.Helper()

	ops, ok := fs.Root().AsDir()
	require.True(t, ok)
	return ops.(*dirNode)
}

// createFile creates name in dir and writes content to it.
func createFile(t *testing.T, dir *dirNode, name string, content []byte) *fileNode {
	t.Helper()

	n, err := dir.Create(name, vfsRW)
	require.NoError(t, err)

	ops, ok := n.AsFile()
	require.True(t, ok)

	if len(content) > 0 {
		written, err := ops.WriteAt(content, 0)
		require.NoError(t, err)
		require.Equal(t, len(content), written)
	}
	return ops.(*fileNode)
}

// pattern returns n bytes which differ from cluster to cluster.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/4096)
	}
	return data
}
