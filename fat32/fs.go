// Package fat32 implements a read-write FAT32 filesystem on top of a blockdev.BlockDevice.
package fat32

import (
	"errors"
	"sync"
	"weak"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
)

// ErrUnmounted is returned by every operation on an unmounted filesystem.
var ErrUnmounted = errors.New("filesystem is unmounted")

// FileSystem is a mounted FAT32 volume.
// All operations are serialized by one lock.
type FileSystem struct {
	mu sync.Mutex

	dev  blockdev.BlockDevice
	log  *logrus.Entry
	opts options

	boot *BootSector
	// fsInfoSector is 0 if the volume has no valid FSInfo.
	fsInfoSector uint64

	sectorSize   uint32
	clusterSize  uint32
	dataStart    uint64
	table        *clusterTable
	root         *node
	nodes        map[slotRef]weak.Pointer[node]
	pruneAt      int
	unmounted    bool
	sectorBuffer []byte
}

// Mount reads the boot sector and FSInfo of dev and returns the filesystem.
func Mount(dev blockdev.BlockDevice, opts ...Option) (*FileSystem, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	blockSize := dev.BlockSize()
	if blockSize < bootSectorSize {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "block size %d is smaller than a boot sector", blockSize)
	}

	buffer := make([]byte, blockSize)
	if err := dev.ReadBlock(0, buffer); err != nil {
		return nil, checkpoint.Wrapf(err, vfs.ErrIO, "read boot sector")
	}

	boot, err := parseBootSector(buffer)
	if err != nil {
		return nil, err
	}

	if err := boot.validate(o.skipChecks); err != nil {
		return nil, err
	}

	if uint32(boot.BytesPerSector) != blockSize {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "sector size %d does not match the block size %d", boot.BytesPerSector, blockSize)
	}

	if uint64(boot.TotalSectors) > dev.TotalBlocks() {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "volume has %d sectors but the device only %d", boot.TotalSectors, dev.TotalBlocks())
	}

	fatStart := uint64(boot.ReservedSectors)
	dataStart := fatStart + uint64(boot.NumFATs)*uint64(boot.FATSize)
	totalClusters := (uint64(boot.TotalSectors) - dataStart) / uint64(boot.SectorsPerCluster)

	// Some formatters create a FAT which is too small for the data region.
	// Clusters without FAT entry cannot be used.
	capacity := uint64(boot.FATSize)*uint64(boot.BytesPerSector)/4 - uint64(firstCluster)
	if totalClusters > capacity {
		o.log.WithFields(logrus.Fields{
			"clusters": totalClusters,
			"capacity": capacity,
		}).Warn("FAT is too small for the data region, ignoring the clusters at the end")
		totalClusters = capacity
	}
	if totalClusters > uint64(maxClusters) {
		totalClusters = uint64(maxClusters)
	}
	if totalClusters == 0 {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "volume has no data clusters")
	}

	f := &FileSystem{
		dev:          dev,
		log:          o.log,
		opts:         o,
		boot:         boot,
		sectorSize:   blockSize,
		clusterSize:  boot.ClusterSize(),
		dataStart:    dataStart,
		table:        newClusterTable(dev, o.log, boot, uint32(totalClusters)),
		nodes:        make(map[slotRef]weak.Pointer[node]),
		pruneAt:      minPruneAt,
		sectorBuffer: make([]byte, blockSize),
	}

	if !f.table.valid(boot.RootCluster) {
		return nil, checkpoint.Errorf(vfs.ErrInvalidArgument, "root cluster %d is outside of the data region", boot.RootCluster)
	}

	f.loadFSInfo()
	f.root = &node{fs: f, dir: true, isRoot: true}
	f.root.parent = f.root

	f.log.WithFields(logrus.Fields{
		"label":       boot.VolumeLabel,
		"clusterSize": f.clusterSize,
		"clusters":    totalClusters,
		"fats":        boot.NumFATs,
	}).Debug("mounted FAT32 volume")

	return f, nil
}

// loadFSInfo reads the advisory FSInfo sector. Any problem just disables it.
func (f *FileSystem) loadFSInfo() {
	sector := uint64(f.boot.FSInfoSector)
	if sector == 0 || sector == 0xFFFF || sector >= uint64(f.boot.ReservedSectors) {
		f.log.WithField("sector", sector).Debug("volume has no FSInfo sector")
		return
	}

	if err := f.dev.ReadBlock(sector, f.sectorBuffer); err != nil {
		f.log.WithError(err).Warn("could not read FSInfo sector")
		return
	}

	info, err := parseFSInfo(f.sectorBuffer)
	if err != nil {
		f.log.WithError(err).Warn("ignoring invalid FSInfo sector")
		return
	}

	f.fsInfoSector = sector
	if info.NextFree != fsInfoUnknown && f.table.valid(info.NextFree) {
		f.table.nextFree = info.NextFree
	}
	if info.FreeCount != fsInfoUnknown && info.FreeCount <= f.table.totalClusters {
		f.table.freeCount = info.FreeCount
	}
}

// BootSector returns the parsed boot sector.
func (f *FileSystem) BootSector() BootSector {
	return *f.boot
}

// Root returns the root directory. It has no directory entry on disk.
func (f *FileSystem) Root() vfs.Node {
	return f.root
}

// StatFS reports the capacity in clusters. The free count is obtained by a FAT
// scan unless the filesystem was mounted WithTrustFSInfo and FSInfo knows it.
func (f *FileSystem) StatFS() (vfs.StatFS, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMounted(); err != nil {
		return vfs.StatFS{}, err
	}

	free := f.table.freeCount
	if !f.opts.trustInfo || free == fsInfoUnknown {
		var err error
		free, err = f.table.countFree()
		if err != nil {
			return vfs.StatFS{}, err
		}
	}

	return vfs.StatFS{
		BlockSize:   f.clusterSize,
		TotalBlocks: uint64(f.table.totalClusters),
		FreeBlocks:  uint64(free),
		Label:       f.boot.VolumeLabel,
	}, nil
}

// Sync writes the FSInfo sector and flushes the device if it buffers writes.
func (f *FileSystem) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMounted(); err != nil {
		return err
	}
	return f.sync()
}

func (f *FileSystem) sync() error {
	if f.table.dirty && f.fsInfoSector != 0 {
		if err := f.dev.ReadBlock(f.fsInfoSector, f.sectorBuffer); err != nil {
			return checkpoint.Wrapf(err, vfs.ErrIO, "read FSInfo sector")
		}

		info := FSInfo{FreeCount: f.table.freeCount, NextFree: f.table.nextFree}
		if !f.table.valid(info.NextFree) {
			info.NextFree = fsInfoUnknown
		}
		info.encode(f.sectorBuffer)

		if err := f.dev.WriteBlock(f.fsInfoSector, f.sectorBuffer); err != nil {
			return checkpoint.Wrapf(err, vfs.ErrIO, "write FSInfo sector")
		}
		f.table.dirty = false
	}

	if syncer, ok := f.dev.(blockdev.Syncer); ok {
		if err := syncer.Sync(); err != nil {
			return checkpoint.Wrap(err, vfs.ErrIO)
		}
	}
	return nil
}

// Unmount syncs the filesystem. Afterwards every operation fails.
func (f *FileSystem) Unmount() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMounted(); err != nil {
		return err
	}

	if err := f.sync(); err != nil {
		return err
	}

	f.unmounted = true
	f.log.Debug("unmounted FAT32 volume")
	return nil
}

// clusterSector is the first sector of a data cluster.
func (f *FileSystem) clusterSector(cluster uint32) uint64 {
	return f.dataStart + uint64(cluster-firstCluster)*uint64(f.boot.SectorsPerCluster)
}

func (f *FileSystem) readSector(sector uint64, p []byte) error {
	return checkpoint.Wrapf(f.dev.ReadBlock(sector, p), vfs.ErrIO, "read sector %d", sector)
}

func (f *FileSystem) writeSector(sector uint64, p []byte) error {
	return checkpoint.Wrapf(f.dev.WriteBlock(sector, p), vfs.ErrIO, "write sector %d", sector)
}

// zeroCluster overwrites a whole cluster with zeroes.
func (f *FileSystem) zeroCluster(cluster uint32) error {
	zero := make([]byte, f.sectorSize)
	first := f.clusterSector(cluster)
	for i := uint64(0); i < uint64(f.boot.SectorsPerCluster); i++ {
		if err := f.writeSector(first+i, zero); err != nil {
			return err
		}
	}
	return nil
}
