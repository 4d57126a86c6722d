package fat32

import (
	"encoding/binary"
	"math/bits"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/google/uuid"
)

const (
	defaultReservedSectors = 32
	defaultNumFATs         = 2
	fsInfoSectorIndex      = 1
	backupBootSectorIndex  = 6
	mediaFixedDisk         = 0xF8
)

// FormatOptions configure Format. Zero values select the defaults.
type FormatOptions struct {
	// Label is the volume label, at most 11 characters.
	Label string
	// SectorsPerCluster must be a power of two. It defaults to the cluster
	// sizes Microsoft's format uses for the volume size.
	SectorsPerCluster uint8
	// NumFATs defaults to 2.
	NumFATs uint8
	// VolumeID defaults to a random id.
	VolumeID uint32
	// OEMName defaults to "fatvfs".
	OEMName string
}

// defaultSectorsPerCluster follows the cluster size table of Microsoft's format.
func defaultSectorsPerCluster(bytes uint64, sectorSize uint32) uint8 {
	var clusterSize uint64
	switch {
	case bytes <= 260<<20:
		clusterSize = 512
	case bytes <= 8<<30:
		clusterSize = 4 << 10
	case bytes <= 16<<30:
		clusterSize = 8 << 10
	case bytes <= 32<<30:
		clusterSize = 16 << 10
	default:
		clusterSize = 32 << 10
	}

	if clusterSize < uint64(sectorSize) {
		return 1
	}
	return uint8(clusterSize / uint64(sectorSize))
}

// Format writes an empty FAT32 volume spanning the whole device:
// boot sector and backup, FSInfo and backup, all FATs and a zeroed root directory.
func Format(dev blockdev.BlockDevice, opts FormatOptions) error {
	sectorSize := dev.BlockSize()
	if sectorSize < 512 || sectorSize > 4096 || bits.OnesCount32(sectorSize) != 1 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "unsupported sector size %d", sectorSize)
	}

	totalSectors := dev.TotalBlocks()
	if totalSectors > 0xFFFFFFFF {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "device with %d sectors is too big for FAT32", totalSectors)
	}

	if len(opts.Label) > 11 {
		return checkpoint.Errorf(vfs.ErrNameTooLong, "label %q is longer than 11 characters", opts.Label)
	}

	spc := opts.SectorsPerCluster
	if spc == 0 {
		spc = defaultSectorsPerCluster(totalSectors*uint64(sectorSize), sectorSize)
	}
	if bits.OnesCount8(spc) != 1 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "sectors per cluster %d is no power of two", spc)
	}

	numFATs := opts.NumFATs
	if numFATs == 0 {
		numFATs = defaultNumFATs
	}

	// Grow the FAT until it covers all clusters of the remaining data region.
	reserved := uint64(defaultReservedSectors)
	fatSize := uint64(1)
	var clusters uint64
	for {
		if reserved+uint64(numFATs)*fatSize >= totalSectors {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "device with %d sectors is too small", totalSectors)
		}

		clusters = (totalSectors - reserved - uint64(numFATs)*fatSize) / uint64(spc)
		need := ceilDiv(int64(clusters+uint64(firstCluster))*4, int64(sectorSize))
		if uint64(need) <= fatSize {
			break
		}
		fatSize = uint64(need)
	}

	if clusters < 2 || clusters > uint64(maxClusters) {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid cluster count %d", clusters)
	}

	volumeID := opts.VolumeID
	if volumeID == 0 {
		id := uuid.New()
		volumeID = binary.LittleEndian.Uint32(id[:4])
	}

	oemName := opts.OEMName
	if oemName == "" {
		oemName = "fatvfs"
	}

	label := opts.Label
	if label == "" {
		label = "NO NAME"
	}

	boot := &BootSector{
		JumpBoot:          [3]byte{0xEB, 0x58, 0x90},
		OEMName:           oemName,
		BytesPerSector:    uint16(sectorSize),
		SectorsPerCluster: spc,
		ReservedSectors:   uint16(reserved),
		NumFATs:           numFATs,
		TotalSectors:      uint32(totalSectors),
		Media:             mediaFixedDisk,
		SectorsPerTrack:   32,
		NumberOfHeads:     64,
		FATSize:           uint32(fatSize),
		RootCluster:       firstCluster,
		FSInfoSector:      fsInfoSectorIndex,
		BackupBootSector:  backupBootSectorIndex,
		DriveNumber:       0x80,
		VolumeID:          volumeID,
		VolumeLabel:       label,
		FSType:            fsTypeFAT32,
	}

	zero := make([]byte, sectorSize)
	write := func(sector uint64, data []byte) error {
		return checkpoint.Wrapf(dev.WriteBlock(sector, data), vfs.ErrIO, "write sector %d", sector)
	}

	// Clear the reserved region and all FATs.
	for sector := uint64(0); sector < reserved+uint64(numFATs)*fatSize; sector++ {
		if err := write(sector, zero); err != nil {
			return err
		}
	}

	bootData := make([]byte, sectorSize)
	copy(bootData, boot.Bytes())

	info := make([]byte, sectorSize)
	(&FSInfo{
		// The root directory uses the first cluster.
		FreeCount: uint32(clusters) - 1,
		NextFree:  firstCluster + 1,
	}).encode(info)

	for _, base := range []uint64{0, backupBootSectorIndex} {
		if err := write(base, bootData); err != nil {
			return err
		}
		if err := write(base+fsInfoSectorIndex, info); err != nil {
			return err
		}
	}

	// The first two FAT entries hold the media byte and the end of chain marker,
	// the third one terminates the root directory.
	fat := make([]byte, sectorSize)
	binary.LittleEndian.PutUint32(fat[0:4], 0x0FFFFF00|mediaFixedDisk)
	binary.LittleEndian.PutUint32(fat[4:8], endOfChain)
	binary.LittleEndian.PutUint32(fat[8:12], endOfChain)
	for i := uint64(0); i < uint64(numFATs); i++ {
		if err := write(reserved+i*fatSize, fat); err != nil {
			return err
		}
	}

	dataStart := reserved + uint64(numFATs)*fatSize
	root := make([]byte, sectorSize)
	if opts.Label != "" {
		entry := EntryHeader{Attribute: AttrVolumeID}
		copy(entry.Name[:], padRight(opts.Label, 11))
		entry.encode(root)
	}

	for i := uint64(0); i < uint64(spc); i++ {
		data := zero
		if i == 0 {
			data = root
		}
		if err := write(dataStart+i, data); err != nil {
			return err
		}
	}

	if syncer, ok := dev.(blockdev.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			return checkpoint.Wrap(err, vfs.ErrIO)
		}
	}
	return nil
}
