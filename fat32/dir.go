package fat32

import (
	"strings"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
)

// dirData is the loaded content of a directory.
type dirData struct {
	chain   []uint32
	data    []byte
	entries []ExtendedEntryHeader
}

// loadDir reads the whole directory of n.
// If the cluster chain is broken, the readable part is returned together with the error.
func (f *FileSystem) loadDir(n *node) (*dirData, error) {
	h, err := n.header()
	if err != nil {
		return nil, err
	}
	if !h.IsDirectory() {
		return nil, checkpoint.Errorf(vfs.ErrNotDirectory, "%s is no directory", displayShortName(&h))
	}

	chain, chainErr := f.table.chain(h.FirstCluster())
	if chainErr != nil && len(chain) == 0 {
		return nil, chainErr
	}

	d := &dirData{
		chain: chain,
		data:  make([]byte, len(chain)*int(f.clusterSize)),
	}

	sectors := int(f.boot.SectorsPerCluster)
	for i, cluster := range chain {
		first := f.clusterSector(cluster)
		for s := 0; s < sectors; s++ {
			start := (i*sectors + s) * int(f.sectorSize)
			if err := f.readSector(first+uint64(s), d.data[start:start+int(f.sectorSize)]); err != nil {
				return nil, err
			}
		}
	}

	d.entries = decodeEntries(d.data, f.log)
	if chainErr != nil {
		f.log.WithError(chainErr).Warn("directory is truncated")
	}
	return d, chainErr
}

// slotRef returns the location of a slot.
func (f *FileSystem) slotRef(d *dirData, slot int) slotRef {
	offset := uint64(slot) * entrySize
	inCluster := offset % uint64(f.clusterSize)
	cluster := d.chain[offset/uint64(f.clusterSize)]

	return slotRef{
		sector: f.clusterSector(cluster) + inCluster/uint64(f.sectorSize),
		offset: uint32(inCluster % uint64(f.sectorSize)),
	}
}

// writeSlot writes record into a slot of the directory.
func (f *FileSystem) writeSlot(d *dirData, slot int, record []byte) error {
	ref := f.slotRef(d, slot)

	buffer := make([]byte, f.sectorSize)
	if err := f.readSector(ref.sector, buffer); err != nil {
		return err
	}
	copy(buffer[ref.offset:ref.offset+entrySize], record)
	if err := f.writeSector(ref.sector, buffer); err != nil {
		return err
	}

	copy(d.data[slot*entrySize:(slot+1)*entrySize], record)
	return nil
}

// markDeleted marks the short entry and then its long name records as deleted.
func (f *FileSystem) markDeleted(d *dirData, e *ExtendedEntryHeader) error {
	for slot := e.Slot; slot >= e.Slot-e.LongSlots; slot-- {
		record := make([]byte, entrySize)
		copy(record, d.data[slot*entrySize:(slot+1)*entrySize])
		record[0] = entryDeleted

		if err := f.writeSlot(d, slot, record); err != nil {
			return err
		}
	}
	return nil
}

// find looks up name case-insensitively by its long and its 8.3 name.
func (d *dirData) find(name string) *ExtendedEntryHeader {
	for i := range d.entries {
		e := &d.entries[i]
		if e.IsVolumeLabel() || e.isDot() {
			continue
		}

		if strings.EqualFold(e.ExtendedName, name) || strings.EqualFold(displayShortName(&e.EntryHeader), name) {
			return e
		}
	}
	return nil
}

func (d *dirData) shortTaken(short [11]byte) bool {
	for i := range d.entries {
		if d.entries[i].Name == short {
			return true
		}
	}
	return false
}

// entryName is the on-disk form of a name.
type entryName struct {
	short [11]byte
	nt    byte
	long  []LongFilenameEntry
}

// encodeName decides how name is stored in d. Without long name support
// only valid 8.3 names are accepted.
func (f *FileSystem) encodeName(d *dirData, name string) (entryName, error) {
	short, err := encodeShort(name)
	if err == nil && !(f.opts.longNames && short.mixedCase) {
		return entryName{short: short.raw, nt: short.nt}, nil
	}
	if !f.opts.longNames {
		return entryName{}, err
	}

	alias, err := shortAlias(name, d.shortTaken)
	if err != nil {
		return entryName{}, err
	}

	long, err := encodeLongName(name, alias)
	if err != nil {
		return entryName{}, err
	}

	return entryName{short: alias, long: long}, nil
}

func (n entryName) records(h *EntryHeader) [][]byte {
	records := make([][]byte, 0, len(n.long)+1)
	for i := range n.long {
		records = append(records, n.long[i].Bytes())
	}
	return append(records, h.Bytes())
}

// insert stores records in consecutive free slots and returns the slot of
// the last record. The directory grows by zeroed clusters if no such run
// exists. The end of directory marker is kept behind the new records and
// the last record (the short entry) is written last.
func (f *FileSystem) insert(d *dirData, records [][]byte) (int, error) {
	need := len(records)
	total := len(d.data) / entrySize

	// end is the first slot of the end of directory.
	end := total
	found, run, start := -1, 0, 0
	for slot := 0; slot < total; slot++ {
		first := d.data[slot*entrySize]
		if first == entryFree && end == total {
			end = slot
		}

		if slot >= end || first == entryDeleted {
			if run == 0 {
				start = slot
			}
			run++
			if run == need {
				found = start
				break
			}
		} else {
			run = 0
		}
	}

	if found < 0 {
		// The trailing free slots are used together with the new clusters.
		if run == 0 {
			start = total
		}

		if len(d.chain) == 0 {
			return 0, checkpoint.Errorf(vfs.ErrIO, "directory has no cluster")
		}
		last := d.chain[len(d.chain)-1]

		missing := int64(need-run) * entrySize
		count := int(ceilDiv(missing, int64(f.clusterSize)))

		added, err := f.table.allocateChain(count, last, f.zeroCluster)
		if err != nil {
			f.releasePartial(last, added)
			return 0, err
		}

		d.chain = append(d.chain, added...)
		d.data = append(d.data, make([]byte, len(added)*int(f.clusterSize))...)
		total = len(d.data) / entrySize
		found = start
	}

	// The records replace the end marker, so move it behind them.
	after := found + need
	if after > end && after < total && d.data[after*entrySize] != entryFree {
		if err := f.writeSlot(d, after, make([]byte, entrySize)); err != nil {
			return 0, err
		}
	}

	for i, record := range records {
		if err := f.writeSlot(d, found+i, record); err != nil {
			return 0, err
		}
	}

	return found + need - 1, nil
}

// newEntry checks that name does not exist in parent yet and encodes it.
func (f *FileSystem) newEntry(parent *node, name string) (*dirData, entryName, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return nil, entryName{}, checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid name %q", name)
	}

	d, err := f.loadDir(parent)
	if err != nil {
		return nil, entryName{}, err
	}

	if d.find(name) != nil {
		return nil, entryName{}, checkpoint.Errorf(vfs.ErrExists, "%q already exists", name)
	}

	en, err := f.encodeName(d, name)
	if err != nil {
		return nil, entryName{}, err
	}
	return d, en, nil
}

// publish inserts the entry h named en into d and returns its node.
func (f *FileSystem) publish(parent *node, d *dirData, en entryName, h *EntryHeader) (*node, error) {
	h.Name = en.short
	h.NTReserved = en.nt
	f.stamp(h, true)

	slot, err := f.insert(d, en.records(h))
	if err != nil {
		return nil, err
	}

	return f.nodeAt(f.slotRef(d, slot), parent, h.IsDirectory()), nil
}

func attributesOf(perm vfs.Permissions) byte {
	if perm.Write {
		return 0
	}
	return AttrReadOnly
}

func (d *dirNode) node() *node {
	return (*node)(d)
}

func (d *dirNode) ReadDir() ([]vfs.DirEntry, error) {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.loadDir(d.node())
	if data == nil {
		return nil, err
	}

	result := make([]vfs.DirEntry, 0, len(data.entries))
	for i := range data.entries {
		e := &data.entries[i]
		if e.IsVolumeLabel() || e.isDot() {
			continue
		}

		typ := vfs.TypeRegular
		if e.IsDirectory() {
			typ = vfs.TypeDirectory
		}

		result = append(result, vfs.DirEntry{
			Name:  e.DisplayName(),
			Inode: slotInode(f.slotRef(data, e.Slot), f.sectorSize),
			Type:  typ,
		})
	}

	// A broken chain still lists the readable part, the problem was logged by loadDir.
	return result, nil
}

func (d *dirNode) Lookup(name string) (vfs.Node, error) {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkMounted(); err != nil {
		return nil, err
	}

	switch name {
	case ".":
		return d.node(), nil
	case "..":
		return d.parent, nil
	}

	data, err := f.loadDir(d.node())
	if data == nil {
		return nil, err
	}

	e := data.find(name)
	if e == nil {
		if err != nil {
			return nil, err
		}
		return nil, checkpoint.Errorf(vfs.ErrNotFound, "%q does not exist", name)
	}

	return f.nodeAt(f.slotRef(data, e.Slot), d.node(), e.IsDirectory()), nil
}

func (d *dirNode) Create(name string, perm vfs.Permissions) (vfs.Node, error) {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	data, en, err := f.newEntry(d.node(), name)
	if err != nil {
		return nil, err
	}

	h := EntryHeader{Attribute: AttrArchive | attributesOf(perm)}
	return f.publish(d.node(), data, en, &h)
}

// Mkdir creates a sub directory. Its first cluster is zeroed and filled with
// the "." and ".." entries before the directory entry is published.
func (d *dirNode) Mkdir(name string, perm vfs.Permissions) (vfs.Node, error) {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	data, en, err := f.newEntry(d.node(), name)
	if err != nil {
		return nil, err
	}

	parentCluster, err := d.node().dotDotCluster()
	if err != nil {
		return nil, err
	}

	chain, err := f.table.allocateChain(1, 0, f.zeroCluster)
	if err != nil {
		f.releasePartial(0, chain)
		return nil, err
	}
	cluster := chain[0]

	dot := EntryHeader{Name: dotName, Attribute: AttrDirectory}
	dot.SetFirstCluster(cluster)
	f.stamp(&dot, true)

	dotDot := EntryHeader{Name: dotDotName, Attribute: AttrDirectory}
	dotDot.SetFirstCluster(parentCluster)
	f.stamp(&dotDot, true)

	sector := make([]byte, f.sectorSize)
	dot.encode(sector[0:entrySize])
	dotDot.encode(sector[entrySize : 2*entrySize])
	if err := f.writeSector(f.clusterSector(cluster), sector); err != nil {
		f.releasePartial(0, chain)
		return nil, err
	}

	h := EntryHeader{Attribute: AttrDirectory | attributesOf(perm)}
	h.SetFirstCluster(cluster)

	n, err := f.publish(d.node(), data, en, &h)
	if err != nil {
		f.releasePartial(0, chain)
		return nil, err
	}
	return n, nil
}

// Unlink removes a file or an empty directory. The entry is removed before
// its clusters are freed.
func (d *dirNode) Unlink(name string) error {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	if name == "." || name == ".." {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "cannot remove %q", name)
	}

	data, err := f.loadDir(d.node())
	if err != nil {
		return err
	}

	e := data.find(name)
	if e == nil {
		return checkpoint.Errorf(vfs.ErrNotFound, "%q does not exist", name)
	}

	if e.IsReadOnly() {
		return checkpoint.Errorf(vfs.ErrPermissionDenied, "%q is read-only", name)
	}

	ref := f.slotRef(data, e.Slot)
	if e.IsDirectory() {
		child := f.nodeAt(ref, d.node(), true)
		content, err := f.loadDir(child)
		if err != nil {
			return err
		}

		for i := range content.entries {
			if !content.entries[i].isDot() && !content.entries[i].IsVolumeLabel() {
				return checkpoint.Errorf(vfs.ErrNotEmpty, "%q is not empty", name)
			}
		}
	}

	if err := f.markDeleted(data, e); err != nil {
		return err
	}
	f.forgetNode(ref)

	if first := e.FirstCluster(); first != 0 {
		return f.table.freeChain(first)
	}
	return nil
}

// Rename renames an entry of this directory. The entry is rewritten in place
// if neither the old nor the new name needs long filename records. Otherwise
// the new entry is inserted before the old one is removed.
func (d *dirNode) Rename(oldName, newName string) error {
	f := d.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, name := range []string{oldName, newName} {
		if name == "" || name == "." || name == ".." || strings.ContainsRune(name, '/') {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "invalid name %q", name)
		}
	}

	data, err := f.loadDir(d.node())
	if err != nil {
		return err
	}

	e := data.find(oldName)
	if e == nil {
		return checkpoint.Errorf(vfs.ErrNotFound, "%q does not exist", oldName)
	}

	if target := data.find(newName); target != nil && target.Slot != e.Slot {
		return checkpoint.Errorf(vfs.ErrExists, "%q already exists", newName)
	}

	en, err := f.encodeName(data, newName)
	if err != nil {
		return err
	}

	h := e.EntryHeader
	h.Name = en.short
	h.NTReserved = h.NTReserved&^(ntLowerBase|ntLowerExt) | en.nt

	if e.LongSlots == 0 && len(en.long) == 0 {
		return f.writeSlot(data, e.Slot, h.Bytes())
	}

	oldRef := f.slotRef(data, e.Slot)
	slot, err := f.insert(data, en.records(&h))
	if err != nil {
		return err
	}

	if err := f.markDeleted(data, e); err != nil {
		return err
	}

	f.moveNode(oldRef, f.slotRef(data, slot))
	return nil
}
