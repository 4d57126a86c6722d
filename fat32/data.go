package fat32

import (
	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
)

// maxFileSize is the largest size the 32 bit size field can hold.
const maxFileSize = 0xFFFFFFFF

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// transfer copies between p and the data of chain starting at the byte position pos.
// Partially covered sectors are read, modified and written back.
func (f *FileSystem) transfer(chain []uint32, pos int64, p []byte, write bool) (int, error) {
	clusterSize := int64(f.clusterSize)
	sectorSize := int64(f.sectorSize)
	buffer := make([]byte, f.sectorSize)

	done := 0
	for done < len(p) {
		abs := pos + int64(done)
		inCluster := abs % clusterSize
		sector := f.clusterSector(chain[abs/clusterSize]) + uint64(inCluster/sectorSize)
		inSector := int(inCluster % sectorSize)

		n := int(sectorSize) - inSector
		if n > len(p)-done {
			n = len(p) - done
		}

		if !write || n < int(sectorSize) {
			if err := f.readSector(sector, buffer); err != nil {
				return done, err
			}
		}

		if write {
			copy(buffer[inSector:], p[done:done+n])
			if err := f.writeSector(sector, buffer); err != nil {
				return done, err
			}
		} else {
			copy(p[done:done+n], buffer[inSector:])
		}

		done += n
	}

	return done, nil
}

// zeroRange overwrites the bytes from up to to with zeroes.
func (f *FileSystem) zeroRange(chain []uint32, from, to int64) error {
	zero := make([]byte, f.clusterSize)
	for from < to {
		n := minInt64(to-from, int64(len(zero)))
		if _, err := f.transfer(chain, from, zero[:n], true); err != nil {
			return err
		}
		from += n
	}
	return nil
}

// readData reads from the file described by h. Reading at or past the end of
// the file returns 0 without error. If the cluster chain ends before the file
// size the bytes read so far are returned together with vfs.ErrIO.
func (f *FileSystem) readData(h *EntryHeader, off int64, p []byte) (int, error) {
	if off < 0 {
		return 0, checkpoint.Errorf(vfs.ErrInvalidArgument, "negative offset %d", off)
	}

	size := int64(h.FileSize)
	if off >= size || len(p) == 0 {
		return 0, nil
	}

	want := minInt64(int64(len(p)), size-off)
	chain, chainErr := f.table.chain(h.FirstCluster())

	stop := minInt64(off+want, int64(len(chain))*int64(f.clusterSize))
	read := 0
	if stop > off {
		var err error
		read, err = f.transfer(chain, off, p[:stop-off], false)
		if err != nil {
			return read, err
		}
	}

	if int64(read) < want {
		if chainErr == nil {
			chainErr = checkpoint.Errorf(vfs.ErrIO, "cluster chain covers %d bytes but the file has %d", len(chain)*int(f.clusterSize), size)
		}
		f.log.WithFields(logrus.Fields{
			"firstCluster": h.FirstCluster(),
			"size":         size,
			"read":         read,
		}).Warn("file data is incomplete")
		return read, chainErr
	}

	return read, nil
}

// writeData writes p at off and updates size and first cluster of h.
// h is not stored, the caller publishes it after the data is written.
//
// A write starting behind the end of the file fills the gap with zeroes.
// If the volume runs out of space, everything that fits is written and
// vfs.ErrNoSpace is returned together with the number of bytes written.
func (f *FileSystem) writeData(h *EntryHeader, off int64, p []byte) (int, error) {
	if off < 0 {
		return 0, checkpoint.Errorf(vfs.ErrInvalidArgument, "negative offset %d", off)
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := off + int64(len(p))
	if end > maxFileSize {
		return 0, checkpoint.Errorf(vfs.ErrInvalidArgument, "file would grow to %d bytes, max is %d", end, int64(maxFileSize))
	}

	chain, err := f.table.chain(h.FirstCluster())
	if err != nil {
		return 0, err
	}

	var allocErr error
	if need := ceilDiv(end, int64(f.clusterSize)); int64(len(chain)) < need {
		var last uint32
		if len(chain) > 0 {
			last = chain[len(chain)-1]
		}

		added, err := f.table.allocateChain(int(need-int64(len(chain))), last, nil)
		chain = append(chain, added...)
		allocErr = err

		if h.FirstCluster() == 0 && len(chain) > 0 {
			h.SetFirstCluster(chain[0])
		}
	}

	size := int64(h.FileSize)
	avail := int64(len(chain)) * int64(f.clusterSize)

	if off > size {
		gapEnd := minInt64(off, avail)
		if err := f.zeroRange(chain, size, gapEnd); err != nil {
			return 0, err
		}
		if gapEnd > size {
			size = gapEnd
			h.FileSize = uint32(size)
		}
	}

	written := 0
	if stop := minInt64(end, avail); stop > off {
		written, err = f.transfer(chain, off, p[:stop-off], true)
		if off+int64(written) > size {
			h.FileSize = uint32(off + int64(written))
		}
		if err != nil {
			return written, err
		}
	}

	return written, allocErr
}

// truncateData changes the size of the file of n to size and stores the entry.
//
// Shrinking publishes the new size before the tail of the chain is cut off and
// freed. Growing zeroes the rest of the last cluster and appends zeroed clusters
// before the size is published.
func (f *FileSystem) truncateData(n *node, h *EntryHeader, size int64) error {
	if size < 0 || size > maxFileSize {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid file size %d", size)
	}

	current := int64(h.FileSize)
	if size == current {
		return nil
	}

	chain, err := f.table.chain(h.FirstCluster())
	if err != nil {
		return err
	}
	keep := ceilDiv(size, int64(f.clusterSize))

	if size < current {
		if keep == 0 {
			first := h.FirstCluster()
			h.SetFirstCluster(0)
			h.FileSize = 0
			f.stamp(h, false)
			if err := n.store(h); err != nil {
				return err
			}
			if first == 0 {
				return nil
			}
			return f.table.freeChain(first)
		}

		h.FileSize = uint32(size)
		f.stamp(h, false)
		if err := n.store(h); err != nil {
			return err
		}

		if keep < int64(len(chain)) {
			if err := f.table.writeEntry(chain[keep-1], endOfChain); err != nil {
				return err
			}
			return f.table.freeChain(chain[keep])
		}
		return nil
	}

	// Clusters which already exist may contain old data.
	if err := f.zeroRange(chain, current, minInt64(size, int64(len(chain))*int64(f.clusterSize))); err != nil {
		return err
	}

	if missing := keep - int64(len(chain)); missing > 0 {
		var last uint32
		if len(chain) > 0 {
			last = chain[len(chain)-1]
		}

		added, err := f.table.allocateChain(int(missing), last, f.zeroCluster)
		if err != nil {
			f.releasePartial(last, added)
			return err
		}

		if h.FirstCluster() == 0 {
			h.SetFirstCluster(added[0])
		}
	}

	h.FileSize = uint32(size)
	f.stamp(h, false)
	return n.store(h)
}

// releasePartial frees clusters of a failed allocation which were appended to last.
func (f *FileSystem) releasePartial(last uint32, added []uint32) {
	if len(added) == 0 {
		return
	}

	if last != 0 {
		if err := f.table.writeEntry(last, endOfChain); err != nil {
			f.log.WithError(err).Warn("could not cut off partial allocation")
			return
		}
	}
	if err := f.table.freeChain(added[0]); err != nil {
		f.log.WithError(err).Warn("could not free partial allocation")
	}
}
