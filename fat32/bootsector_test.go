package fat32

import (
	"encoding/binary"
	"testing"

	"github.com/aligator/fatvfs/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// formattedBootSector returns the raw boot sector of a freshly formatted small image.
func formattedBootSector(t *testing.T) []byte {
	t.Helper()

	dev := formatTestDevice(t, smallImage)
	data := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(0, data))
	return data
}

func Test_parseBootSector(t *testing.T) {
	boot, err := parseBootSector(formattedBootSector(t))
	require.NoError(t, err)

	assert.Equal(t, [3]byte{0xEB, 0x58, 0x90}, boot.JumpBoot)
	assert.Equal(t, "fatvfs  ", boot.OEMName)
	assert.Equal(t, uint16(512), boot.BytesPerSector)
	assert.Equal(t, uint8(8), boot.SectorsPerCluster)
	assert.Equal(t, uint16(32), boot.ReservedSectors)
	assert.Equal(t, uint8(2), boot.NumFATs)
	assert.Equal(t, uint32(8192), boot.TotalSectors)
	assert.Equal(t, uint32(8), boot.FATSize)
	assert.Equal(t, uint32(2), boot.RootCluster)
	assert.Equal(t, uint16(1), boot.FSInfoSector)
	assert.Equal(t, uint16(6), boot.BackupBootSector)
	assert.Equal(t, uint32(0x12345678), boot.VolumeID)
	assert.Equal(t, "TESTVOL", boot.VolumeLabel)
	assert.Equal(t, fsTypeFAT32, boot.FSType)
	assert.Equal(t, uint32(4096), boot.ClusterSize())

	assert.NoError(t, boot.validate(false))
	assert.Equal(t, formattedBootSector(t), boot.Bytes())
}

func TestBootSector_validate(t *testing.T) {
	tests := []struct {
		name          string
		modify        func(data []byte)
		wantParseErr  bool
		wantErr       bool
		wantErrSkip   bool
		wantErrKindOf *vfs.Error
	}{
		{
			name:   "valid",
			modify: func(data []byte) {},
		},
		{
			name:          "FAT16 type",
			modify:        func(data []byte) { copy(data[82:90], "FAT16   ") },
			wantParseErr:  true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "no FAT at all",
			modify:        func(data []byte) { copy(data[82:90], "This is ") },
			wantParseErr:  true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "16 bit FAT size",
			modify:        func(data []byte) { binary.LittleEndian.PutUint16(data[22:24], 8) },
			wantParseErr:  true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "sector size no power of two",
			modify:        func(data []byte) { binary.LittleEndian.PutUint16(data[11:13], 1000) },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "sectors per cluster no power of two",
			modify:        func(data []byte) { data[13] = 3 },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "zero sectors per cluster",
			modify:        func(data []byte) { data[13] = 0 },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "no FATs",
			modify:        func(data []byte) { data[16] = 0 },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "no data region",
			modify:        func(data []byte) { binary.LittleEndian.PutUint32(data[36:40], 5000) },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "root cluster 0",
			modify:        func(data []byte) { binary.LittleEndian.PutUint32(data[44:48], 0) },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:   "second FAT active",
			modify: func(data []byte) { binary.LittleEndian.PutUint16(data[40:42], 0x81) },
		},
		{
			name:          "active FAT out of range",
			modify:        func(data []byte) { binary.LittleEndian.PutUint16(data[40:42], 0x85) },
			wantErr:       true,
			wantErrSkip:   true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:   "active FAT ignored while mirroring",
			modify: func(data []byte) { binary.LittleEndian.PutUint16(data[40:42], 0x05) },
		},
		{
			name:          "invalid jump",
			modify:        func(data []byte) { data[0] = 0 },
			wantErr:       true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "invalid media",
			modify:        func(data []byte) { data[21] = 0x12 },
			wantErr:       true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "root entry count set",
			modify:        func(data []byte) { binary.LittleEndian.PutUint16(data[17:19], 512) },
			wantErr:       true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "cluster too big",
			modify:        func(data []byte) { data[13] = 128 },
			wantErr:       true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
		{
			name:          "missing signature",
			modify:        func(data []byte) { data[510], data[511] = 0, 0 },
			wantErr:       true,
			wantErrKindOf: vfs.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := formattedBootSector(t)
			tt.modify(data)

			boot, err := parseBootSector(data)
			if tt.wantParseErr {
				assert.ErrorIs(t, err, tt.wantErrKindOf)
				return
			}
			require.NoError(t, err)

			err = boot.validate(false)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate(false) error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assert.Same(t, tt.wantErrKindOf, vfs.KindOf(err))
			}

			err = boot.validate(true)
			if (err != nil) != tt.wantErrSkip {
				t.Errorf("validate(true) error = %v, wantErr %v", err, tt.wantErrSkip)
			}
		})
	}
}

func Test_parseBootSector_short(t *testing.T) {
	_, err := parseBootSector(make([]byte, 100))
	assert.ErrorIs(t, err, vfs.ErrInvalidArgument)
}

func Test_parseFSInfo(t *testing.T) {
	valid := func() []byte {
		data := make([]byte, 512)
		(&FSInfo{FreeCount: 1000, NextFree: 42}).encode(data)
		return data
	}

	tests := []struct {
		name    string
		modify  func(data []byte)
		want    *FSInfo
		wantErr bool
	}{
		{
			name:   "valid",
			modify: func(data []byte) {},
			want:   &FSInfo{FreeCount: 1000, NextFree: 42},
		},
		{
			name:    "lead signature",
			modify:  func(data []byte) { data[0] = 0 },
			wantErr: true,
		},
		{
			name:    "struct signature",
			modify:  func(data []byte) { data[484] = 0 },
			wantErr: true,
		},
		{
			name:    "trail signature",
			modify:  func(data []byte) { data[511] = 0 },
			wantErr: true,
		},
		{
			name:   "unknown values",
			modify: func(data []byte) { (&FSInfo{FreeCount: fsInfoUnknown, NextFree: fsInfoUnknown}).encode(data) },
			want:   &FSInfo{FreeCount: fsInfoUnknown, NextFree: fsInfoUnknown},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := valid()
			tt.modify(data)

			got, err := parseFSInfo(data)
			if tt.wantErr {
				assert.ErrorIs(t, err, vfs.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSInfo_encode_keepsReservedBytes(t *testing.T) {
	data := make([]byte, 512)
	for i := range data {
		data[i] = 0xAB
	}

	(&FSInfo{FreeCount: 1, NextFree: 2}).encode(data)

	assert.Equal(t, byte(0xAB), data[4])
	assert.Equal(t, byte(0xAB), data[483])
	assert.Equal(t, byte(0xAB), data[496])
	assert.Equal(t, byte(0xAB), data[507])
}
