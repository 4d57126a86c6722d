package fat32

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
)

// FAT entry values.
const (
	clusterFree     uint32 = 0x00000000
	clusterReserved uint32 = 0x00000001
	clusterBad      uint32 = 0x0FFFFFF7
	endOfChain      uint32 = 0x0FFFFFFF
	// endOfChainMin is the smallest value which still marks the end of a chain.
	endOfChainMin uint32 = 0x0FFFFFF8

	entryMask uint32 = 0x0FFFFFFF

	// firstCluster is the first cluster of the data region, 0 and 1 are reserved.
	firstCluster uint32 = 2

	// maxClusters is the highest cluster count which keeps all cluster numbers below clusterBad.
	maxClusters uint32 = 0x0FFFFFF5
)

func isEndOfChain(value uint32) bool {
	return value >= endOfChainMin
}

// ShortAllocationError is returned if not all requested clusters could be allocated.
// The clusters which were allocated still form a valid, terminated chain.
type ShortAllocationError struct {
	Requested int
	Allocated int
}

func (e *ShortAllocationError) Error() string {
	return fmt.Sprintf("allocated only %d of %d clusters", e.Allocated, e.Requested)
}

// Unwrap makes errors.Is(err, vfs.ErrNoSpace) hold.
func (e *ShortAllocationError) Unwrap() error {
	return vfs.ErrNoSpace
}

// fatWindow caches the most recently accessed FAT sector.
// Writes go through to the device immediately.
type fatWindow struct {
	// sector is relative to the start of the FAT.
	sector uint32
	valid  bool
	buffer []byte
}

// clusterTable provides access to the file allocation table.
// It is not safe for concurrent use, the FileSystem lock guards it.
type clusterTable struct {
	dev blockdev.BlockDevice
	log *logrus.Entry

	sectorSize uint32
	// fatStart is the first sector of the first FAT.
	fatStart uint64
	// fatSize is the size of one FAT in sectors.
	fatSize uint32
	numFATs uint8
	// mirror is false if only the FAT activeFAT is in use.
	mirror    bool
	activeFAT uint8

	// totalClusters is the number of data clusters, valid cluster numbers
	// are 2 up to totalClusters+1.
	totalClusters uint32

	// nextFree is where the search for a free cluster starts.
	nextFree uint32
	// freeCount is fsInfoUnknown if it was never counted.
	freeCount uint32
	// dirty is set if nextFree or freeCount changed since the last flush.
	dirty bool

	window fatWindow
}

func newClusterTable(dev blockdev.BlockDevice, log *logrus.Entry, boot *BootSector, totalClusters uint32) *clusterTable {
	return &clusterTable{
		dev:           dev,
		log:           log,
		sectorSize:    uint32(boot.BytesPerSector),
		fatStart:      uint64(boot.ReservedSectors),
		fatSize:       boot.FATSize,
		numFATs:       boot.NumFATs,
		mirror:        !boot.mirroringDisabled(),
		activeFAT:     boot.activeFAT(),
		totalClusters: totalClusters,
		nextFree:      firstCluster,
		freeCount:     fsInfoUnknown,
		window: fatWindow{
			buffer: make([]byte, boot.BytesPerSector),
		},
	}
}

// maxCluster is the highest valid cluster number.
func (t *clusterTable) maxCluster() uint32 {
	return t.totalClusters + firstCluster - 1
}

func (t *clusterTable) valid(cluster uint32) bool {
	return cluster >= firstCluster && cluster <= t.maxCluster()
}

// sourceFAT is the FAT copy which is read.
func (t *clusterTable) sourceFAT() uint8 {
	if t.mirror {
		return 0
	}
	return t.activeFAT
}

// locate returns the sector relative to the FAT start and the byte offset inside that sector.
func (t *clusterTable) locate(cluster uint32) (uint32, uint32) {
	offset := uint64(cluster) * 4
	return uint32(offset / uint64(t.sectorSize)), uint32(offset % uint64(t.sectorSize))
}

func (t *clusterTable) fatSector(fat uint8, sector uint32) uint64 {
	return t.fatStart + uint64(fat)*uint64(t.fatSize) + uint64(sector)
}

// fetch loads a specific single sector of the FAT into the window.
func (t *clusterTable) fetch(sector uint32) error {
	// Only load it once.
	if t.window.valid && t.window.sector == sector {
		return nil
	}

	t.window.valid = false
	abs := t.fatSector(t.sourceFAT(), sector)
	if err := t.dev.ReadBlock(abs, t.window.buffer); err != nil {
		return checkpoint.Wrapf(err, vfs.ErrIO, "read FAT sector %d", abs)
	}

	t.window.sector = sector
	t.window.valid = true
	return nil
}

// store writes the window to every FAT copy in use.
func (t *clusterTable) store() error {
	fats := []uint8{t.activeFAT}
	if t.mirror {
		fats = fats[:0]
		for i := uint8(0); i < t.numFATs; i++ {
			fats = append(fats, i)
		}
	}

	for _, fat := range fats {
		abs := t.fatSector(fat, t.window.sector)
		if err := t.dev.WriteBlock(abs, t.window.buffer); err != nil {
			// The copies may now differ, there is no rollback.
			t.window.valid = false
			return checkpoint.Wrapf(err, vfs.ErrIO, "write FAT %d sector %d", fat, abs)
		}
	}
	return nil
}

// readEntry returns the 28 bit FAT value of cluster.
func (t *clusterTable) readEntry(cluster uint32) (uint32, error) {
	if !t.valid(cluster) {
		return 0, checkpoint.Errorf(vfs.ErrInvalidArgument, "cluster %d out of range 2..%d", cluster, t.maxCluster())
	}

	sector, offset := t.locate(cluster)
	if err := t.fetch(sector); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(t.window.buffer[offset:]) & entryMask, nil
}

// writeEntry sets the FAT value of cluster. The reserved top 4 bits of the
// stored value are kept.
func (t *clusterTable) writeEntry(cluster, value uint32) error {
	if !t.valid(cluster) {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "cluster %d out of range 2..%d", cluster, t.maxCluster())
	}

	sector, offset := t.locate(cluster)
	if err := t.fetch(sector); err != nil {
		return err
	}

	old := binary.LittleEndian.Uint32(t.window.buffer[offset:])
	binary.LittleEndian.PutUint32(t.window.buffer[offset:], old&^entryMask|value&entryMask)

	return t.store()
}

// findFree searches a free cluster starting at the hint and wraps around to
// the first cluster. Only a full scan without result reports vfs.ErrNoSpace.
func (t *clusterTable) findFree() (uint32, error) {
	start := t.nextFree
	if !t.valid(start) {
		start = firstCluster
	}

	cluster := start
	for i := uint32(0); i < t.totalClusters; i++ {
		value, err := t.readEntry(cluster)
		if err != nil {
			return 0, err
		}
		if value == clusterFree {
			return cluster, nil
		}

		cluster++
		if cluster > t.maxCluster() {
			cluster = firstCluster
		}
	}

	return 0, checkpoint.Errorf(vfs.ErrNoSpace, "all %d clusters are in use", t.totalClusters)
}

// allocateChain allocates count clusters and appends them to the chain ending
// at prev (0 starts a new chain). zero, if not nil, is called for every new
// cluster before it gets linked.
//
// Each cluster is marked as end of chain before the previous cluster links to
// it, so the chain is terminated at any time. If the space runs out, the clusters
// allocated so far are returned together with a *ShortAllocationError.
func (t *clusterTable) allocateChain(count int, prev uint32, zero func(cluster uint32) error) ([]uint32, error) {
	chain := make([]uint32, 0, count)
	for len(chain) < count {
		cluster, err := t.findFree()
		if errors.Is(err, vfs.ErrNoSpace) {
			t.log.WithFields(logrus.Fields{
				"requested": count,
				"allocated": len(chain),
			}).Warn("cluster allocation ran out of space")
			return chain, checkpoint.Wrap(err, &ShortAllocationError{Requested: count, Allocated: len(chain)})
		}
		if err != nil {
			return chain, err
		}

		if zero != nil {
			if err := zero(cluster); err != nil {
				return chain, err
			}
		}

		if err := t.writeEntry(cluster, endOfChain); err != nil {
			return chain, err
		}

		if prev != 0 {
			if err := t.writeEntry(prev, cluster); err != nil {
				// cluster is leaked but nothing references it.
				return chain, err
			}
		}

		chain = append(chain, cluster)
		prev = cluster
		t.nextFree = cluster + 1
		if t.freeCount != fsInfoUnknown && t.freeCount > 0 {
			t.freeCount--
		}
		t.dirty = true
	}

	return chain, nil
}

// freeChain marks every cluster of the chain starting at start as free.
// It stops at the end of chain or a bad cluster. Any other invalid link is
// reported as vfs.ErrIO after the clusters up to it have been freed.
func (t *clusterTable) freeChain(start uint32) error {
	cluster := start
	for freed := uint32(0); ; freed++ {
		if !t.valid(cluster) {
			return checkpoint.Errorf(vfs.ErrIO, "cluster chain from %d leaves the valid range at %d", start, cluster)
		}
		if freed >= t.totalClusters {
			return checkpoint.Errorf(vfs.ErrIO, "cluster chain from %d contains a loop", start)
		}

		next, err := t.readEntry(cluster)
		if err != nil {
			return err
		}

		if next == clusterFree || next == clusterReserved {
			return checkpoint.Errorf(vfs.ErrIO, "cluster %d of chain %d is not allocated", cluster, start)
		}

		if err := t.writeEntry(cluster, clusterFree); err != nil {
			return err
		}

		if t.freeCount != fsInfoUnknown {
			t.freeCount++
		}
		t.dirty = true

		if isEndOfChain(next) || next == clusterBad {
			return nil
		}
		cluster = next
	}
}

// chain returns all clusters of the chain starting at start.
// On corruption the clusters up to the corrupt link are returned together with vfs.ErrIO.
func (t *clusterTable) chain(start uint32) ([]uint32, error) {
	if start == 0 {
		return nil, nil
	}

	var chain []uint32
	cluster := start
	for {
		if !t.valid(cluster) {
			t.log.WithFields(logrus.Fields{"start": start, "cluster": cluster}).Error("cluster chain leaves the valid range")
			return chain, checkpoint.Errorf(vfs.ErrIO, "cluster chain from %d leaves the valid range at %d", start, cluster)
		}
		if uint32(len(chain)) >= t.totalClusters {
			t.log.WithField("start", start).Error("cluster chain contains a loop")
			return chain, checkpoint.Errorf(vfs.ErrIO, "cluster chain from %d contains a loop", start)
		}

		chain = append(chain, cluster)

		next, err := t.readEntry(cluster)
		if err != nil {
			return chain, err
		}

		if isEndOfChain(next) {
			return chain, nil
		}
		if next == clusterBad || next == clusterFree || next == clusterReserved {
			t.log.WithFields(logrus.Fields{"start": start, "cluster": cluster, "next": next}).Error("cluster chain is broken")
			return chain, checkpoint.Errorf(vfs.ErrIO, "cluster %d of chain %d links to %#x", cluster, start, next)
		}
		cluster = next
	}
}

// countFree scans the whole table and caches the result.
func (t *clusterTable) countFree() (uint32, error) {
	var free uint32
	for cluster := firstCluster; cluster <= t.maxCluster(); cluster++ {
		value, err := t.readEntry(cluster)
		if err != nil {
			return 0, err
		}
		if value == clusterFree {
			free++
		}
	}

	if free != t.freeCount {
		t.freeCount = free
		t.dirty = true
	}
	return free, nil
}
