package fat32

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
)

const (
	bootSectorSize = 512

	// fsTypeFAT32 is the only accepted filesystem type tag.
	fsTypeFAT32 = "FAT32   "

	bootSignature = 0xAA55

	// maxClusterSize is the largest cluster size accepted by most drivers.
	maxClusterSize = 32 * 1024
)

// BootSector holds the BIOS parameter block of a FAT32 volume.
// It is parsed once at mount time and never changed afterwards.
type BootSector struct {
	JumpBoot          [3]byte
	OEMName           string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors      uint32
	Media             uint8
	SectorsPerTrack   uint16
	NumberOfHeads     uint16
	HiddenSectors     uint32

	FATSize          uint32
	ExtFlags         uint16
	FSVersion        uint16
	RootCluster      uint32
	FSInfoSector     uint16
	BackupBootSector uint16
	DriveNumber      uint8
	VolumeID         uint32
	VolumeLabel      string
	FSType           string

	Signature uint16
}

// ClusterSize is the size of a cluster in bytes.
func (b *BootSector) ClusterSize() uint32 {
	return uint32(b.BytesPerSector) * uint32(b.SectorsPerCluster)
}

// mirroringDisabled reports whether only the active FAT is in use.
func (b *BootSector) mirroringDisabled() bool {
	return b.ExtFlags&0x80 == 0x80
}

func (b *BootSector) activeFAT() uint8 {
	return uint8(b.ExtFlags & 0x0F)
}

// parseBootSector decodes the first 512 bytes of a volume.
func parseBootSector(data []byte) (*BootSector, error) {
	if len(data) < bootSectorSize {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "boot sector needs %d bytes, got %d", bootSectorSize, len(data))
	}

	b := &BootSector{}
	copy(b.JumpBoot[:], data[0:3])
	b.OEMName = string(data[3:11])
	b.BytesPerSector = binary.LittleEndian.Uint16(data[11:13])
	b.SectorsPerCluster = data[13]
	b.ReservedSectors = binary.LittleEndian.Uint16(data[14:16])
	b.NumFATs = data[16]
	b.RootEntryCount = binary.LittleEndian.Uint16(data[17:19])
	totalSectors16 := binary.LittleEndian.Uint16(data[19:21])
	b.Media = data[21]
	fatSize16 := binary.LittleEndian.Uint16(data[22:24])
	b.SectorsPerTrack = binary.LittleEndian.Uint16(data[24:26])
	b.NumberOfHeads = binary.LittleEndian.Uint16(data[26:28])
	b.HiddenSectors = binary.LittleEndian.Uint32(data[28:32])
	totalSectors32 := binary.LittleEndian.Uint32(data[32:36])

	b.FATSize = binary.LittleEndian.Uint32(data[36:40])
	b.ExtFlags = binary.LittleEndian.Uint16(data[40:42])
	b.FSVersion = binary.LittleEndian.Uint16(data[42:44])
	b.RootCluster = binary.LittleEndian.Uint32(data[44:48])
	b.FSInfoSector = binary.LittleEndian.Uint16(data[48:50])
	b.BackupBootSector = binary.LittleEndian.Uint16(data[50:52])
	b.DriveNumber = data[64]
	b.VolumeID = binary.LittleEndian.Uint32(data[67:71])
	b.VolumeLabel = strings.TrimRight(string(data[71:82]), " ")
	b.FSType = string(data[82:90])
	b.Signature = binary.LittleEndian.Uint16(data[510:512])

	if totalSectors16 != 0 {
		b.TotalSectors = uint32(totalSectors16)
	} else {
		b.TotalSectors = totalSectors32
	}

	if b.FSType != fsTypeFAT32 {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "filesystem type is %q, want %q", b.FSType, fsTypeFAT32)
	}

	if fatSize16 != 0 {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "16 bit FAT size is set on a FAT32 volume")
	}

	return b, nil
}

// validate checks the geometry. skipChecks disables the checks which are only
// about conformance but do not break the driver.
func (b *BootSector) validate(skipChecks bool) error {
	// Sector size must be a power of two, FAT only supports 512 up to 4096.
	if b.BytesPerSector < 512 || b.BytesPerSector > 4096 || bits.OnesCount16(b.BytesPerSector) != 1 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid sector size %d", b.BytesPerSector)
	}

	// Sectors per cluster has to be a power of two and greater than 0.
	if b.SectorsPerCluster == 0 || bits.OnesCount8(b.SectorsPerCluster) != 1 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid sectors per cluster %d", b.SectorsPerCluster)
	}

	if b.ReservedSectors == 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid reserved sector count")
	}

	if b.NumFATs == 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "no FAT on the volume")
	}

	if b.FATSize == 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "FAT size is 0")
	}

	if b.TotalSectors == 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "number of sectors is 0")
	}

	dataStart := uint64(b.ReservedSectors) + uint64(b.NumFATs)*uint64(b.FATSize)
	if dataStart >= uint64(b.TotalSectors) {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "no data region, data starts at sector %d of %d", dataStart, b.TotalSectors)
	}

	if b.RootCluster < firstCluster {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid root cluster %d", b.RootCluster)
	}

	// Without mirroring the active FAT is the only one written, it has to exist.
	if b.mirroringDisabled() && b.activeFAT() >= b.NumFATs {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "active FAT %d of %d FATs", b.activeFAT(), b.NumFATs)
	}

	if skipChecks {
		return nil
	}

	// Check for valid jump instructions.
	if !(b.JumpBoot[0] == 0xEB && b.JumpBoot[2] == 0x90) && b.JumpBoot[0] != 0xE9 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "no valid jump instructions at the beginning")
	}

	// The whole cluster size should not be more than 32K.
	if b.ClusterSize() > maxClusterSize {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "cluster size %d is too big", b.ClusterSize())
	}

	if b.Media != 0xF0 && b.Media < 0xF8 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid media value %#x", b.Media)
	}

	if b.RootEntryCount != 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "root entry count must be 0 on FAT32, got %d", b.RootEntryCount)
	}

	if b.Signature != bootSignature {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid boot sector signature %#x", b.Signature)
	}

	return nil
}

// Bytes encodes the boot sector into a 512 byte slice.
func (b *BootSector) Bytes() []byte {
	data := make([]byte, bootSectorSize)
	copy(data[0:3], b.JumpBoot[:])
	copy(data[3:11], padRight(b.OEMName, 8))
	binary.LittleEndian.PutUint16(data[11:13], b.BytesPerSector)
	data[13] = b.SectorsPerCluster
	binary.LittleEndian.PutUint16(data[14:16], b.ReservedSectors)
	data[16] = b.NumFATs
	binary.LittleEndian.PutUint16(data[17:19], b.RootEntryCount)
	// FAT32 always uses the 32 bit total sector count.
	data[21] = b.Media
	binary.LittleEndian.PutUint16(data[24:26], b.SectorsPerTrack)
	binary.LittleEndian.PutUint16(data[26:28], b.NumberOfHeads)
	binary.LittleEndian.PutUint32(data[28:32], b.HiddenSectors)
	binary.LittleEndian.PutUint32(data[32:36], b.TotalSectors)

	binary.LittleEndian.PutUint32(data[36:40], b.FATSize)
	binary.LittleEndian.PutUint16(data[40:42], b.ExtFlags)
	binary.LittleEndian.PutUint16(data[42:44], b.FSVersion)
	binary.LittleEndian.PutUint32(data[44:48], b.RootCluster)
	binary.LittleEndian.PutUint16(data[48:50], b.FSInfoSector)
	binary.LittleEndian.PutUint16(data[50:52], b.BackupBootSector)
	data[64] = b.DriveNumber
	// Extended boot signature, volume id, label and type follow.
	data[66] = 0x29
	binary.LittleEndian.PutUint32(data[67:71], b.VolumeID)
	copy(data[71:82], padRight(b.VolumeLabel, 11))
	copy(data[82:90], padRight(b.FSType, 8))
	binary.LittleEndian.PutUint16(data[510:512], bootSignature)
	return data
}

func padRight(s string, n int) []byte {
	b := []byte(fmt.Sprintf("%-*s", n, s))
	return b[:n]
}

// FSInfo signatures.
const (
	fsInfoLeadSignature   = 0x41615252
	fsInfoStructSignature = 0x61417272
	fsInfoTrailSignature  = 0xAA550000

	// fsInfoUnknown marks an unknown free count or hint.
	fsInfoUnknown = 0xFFFFFFFF
)

// FSInfo is the advisory free space record of a FAT32 volume.
// Neither value may be trusted blindly.
type FSInfo struct {
	FreeCount uint32
	NextFree  uint32
}

// parseFSInfo decodes an FSInfo sector and validates all three signatures.
func parseFSInfo(data []byte) (*FSInfo, error) {
	if len(data) < bootSectorSize {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "FSInfo needs %d bytes, got %d", bootSectorSize, len(data))
	}

	if sig := binary.LittleEndian.Uint32(data[0:4]); sig != fsInfoLeadSignature {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid FSInfo lead signature %#x", sig)
	}
	if sig := binary.LittleEndian.Uint32(data[484:488]); sig != fsInfoStructSignature {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid FSInfo struct signature %#x", sig)
	}
	if sig := binary.LittleEndian.Uint32(data[508:512]); sig != fsInfoTrailSignature {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid FSInfo trail signature %#x", sig)
	}

	return &FSInfo{
		FreeCount: binary.LittleEndian.Uint32(data[488:492]),
		NextFree:  binary.LittleEndian.Uint32(data[492:496]),
	}, nil
}

// encode writes the FSInfo into the first 512 bytes of data. Bytes outside of
// the defined fields are left untouched.
func (i *FSInfo) encode(data []byte) {
	binary.LittleEndian.PutUint32(data[0:4], fsInfoLeadSignature)
	binary.LittleEndian.PutUint32(data[484:488], fsInfoStructSignature)
	binary.LittleEndian.PutUint32(data[488:492], i.FreeCount)
	binary.LittleEndian.PutUint32(data[492:496], i.NextFree)
	binary.LittleEndian.PutUint32(data[508:512], fsInfoTrailSignature)
}
