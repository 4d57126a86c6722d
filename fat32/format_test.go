package fat32

import (
	"encoding/binary"
	"testing"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/vfs"
	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name         string
		size         int64
		sectorSize   uint32
		opts         FormatOptions
		wantSPC      uint8
		wantFATSize  uint32
		wantClusters uint64
	}{
		{
			name:         "64 MiB with 4096 byte clusters",
			size:         64 * mebibyte,
			sectorSize:   512,
			opts:         FormatOptions{SectorsPerCluster: 8},
			wantSPC:      8,
			wantFATSize:  128,
			wantClusters: 16348,
		},
		{
			name:         "4 MiB with 4096 byte clusters",
			size:         smallImage,
			sectorSize:   512,
			opts:         FormatOptions{SectorsPerCluster: 8},
			wantSPC:      8,
			wantFATSize:  8,
			wantClusters: 1018,
		},
		{
			name:         "default cluster size",
			size:         8 * mebibyte,
			sectorSize:   512,
			wantSPC:      1,
			wantFATSize:  128,
			wantClusters: 16096,
		},
		{
			name:         "4096 byte sectors",
			size:         16 * mebibyte,
			sectorSize:   4096,
			opts:         FormatOptions{NumFATs: 1},
			wantSPC:      1,
			wantFATSize:  4,
			wantClusters: 4060,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := blockdev.CreateImage(afero.NewMemMapFs(), "format.img", tt.size, tt.sectorSize)
			require.NoError(t, err)

			require.NoError(t, Format(dev, tt.opts))

			fs, _ := mountTestDevice(t, dev)
			boot := fs.BootSector()
			assert.Equal(t, tt.wantSPC, boot.SectorsPerCluster)
			assert.Equal(t, tt.wantFATSize, boot.FATSize)

			stat, err := fs.StatFS()
			require.NoError(t, err)
			assert.Equal(t, tt.wantClusters, stat.TotalBlocks)
			assert.Equal(t, tt.wantClusters-1, stat.FreeBlocks)
			assert.Equal(t, "NO NAME", stat.Label)

			// The FAT must be able to hold every cluster.
			assert.GreaterOrEqual(t, uint64(boot.FATSize)*uint64(tt.sectorSize)/4, tt.wantClusters+2)

			entries, err := rootDir(t, fs).ReadDir()
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestFormat_layout(t *testing.T) {
	dev := formatTestDevice(t, smallImage)

	boot := make([]byte, 512)
	backup := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(0, boot))
	require.NoError(t, dev.ReadBlock(6, backup))
	assert.Equal(t, boot, backup)

	info := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(1, info))
	parsed, err := parseFSInfo(info)
	require.NoError(t, err)
	assert.Equal(t, &FSInfo{FreeCount: 1017, NextFree: 3}, parsed)

	require.NoError(t, dev.ReadBlock(7, backup))
	assert.Equal(t, info, backup)

	for _, fat := range []uint64{32, 40} {
		data := make([]byte, 512)
		require.NoError(t, dev.ReadBlock(fat, data))
		assert.Equal(t, uint32(0x0FFFFFF8), binary.LittleEndian.Uint32(data[0:4]))
		assert.Equal(t, endOfChain, binary.LittleEndian.Uint32(data[4:8]))
		assert.Equal(t, endOfChain, binary.LittleEndian.Uint32(data[8:12]))
		assert.Zero(t, binary.LittleEndian.Uint32(data[12:16]))
	}

	// The root directory starts with the volume label.
	root := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(48, root))
	label := decodeEntryHeader(root)
	assert.Equal(t, "TESTVOL    ", string(label.Name[:]))
	assert.Equal(t, AttrVolumeID, label.Attribute)
	assert.Equal(t, byte(0), root[entrySize])
}

func TestFormat_invalid(t *testing.T) {
	tests := []struct {
		name    string
		size    int64
		opts    FormatOptions
		wantErr *vfs.Error
	}{
		{name: "too small", size: 16 * 1024, wantErr: vfs.ErrInvalidArgument},
		{name: "label too long", size: smallImage, opts: FormatOptions{Label: "THIS IS TOO LONG"}, wantErr: vfs.ErrNameTooLong},
		{name: "sectors per cluster", size: smallImage, opts: FormatOptions{SectorsPerCluster: 3}, wantErr: vfs.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Format(newTestDevice(t, tt.size), tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFormat_deviceFailure(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dev := blockdev.NewMockBlockDevice(mockCtrl)
	dev.EXPECT().BlockSize().Return(uint32(512)).AnyTimes()
	dev.EXPECT().TotalBlocks().Return(uint64(8192)).AnyTimes()
	dev.EXPECT().WriteBlock(uint64(0), gomock.Any()).Return(errDevice)

	err := Format(dev, FormatOptions{})
	assert.ErrorIs(t, err, vfs.ErrIO)
	assert.ErrorIs(t, err, errDevice)
}

func TestFormat_invalidSectorSize(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dev := blockdev.NewMockBlockDevice(mockCtrl)
	dev.EXPECT().BlockSize().Return(uint32(256)).AnyTimes()

	err := Format(dev, FormatOptions{})
	assert.ErrorIs(t, err, vfs.ErrInvalidArgument)
}

func TestFormat_syncs(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	dev := blockdev.NewMockBlockDevice(mockCtrl)
	dev.EXPECT().BlockSize().Return(uint32(512)).AnyTimes()
	dev.EXPECT().TotalBlocks().Return(uint64(8192)).AnyTimes()
	dev.EXPECT().WriteBlock(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	syncer := blockdev.NewMockSyncer(mockCtrl)
	syncer.EXPECT().Sync().Return(nil)

	require.NoError(t, Format(struct {
		*blockdev.MockBlockDevice
		*blockdev.MockSyncer
	}{dev, syncer}, FormatOptions{}))
}
