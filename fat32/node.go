package fat32

import (
	"weak"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
)

// minPruneAt is the registry size below which collected nodes are not pruned.
const minPruneAt = 64

// slotRef is the location of a short directory entry on the device.
type slotRef struct {
	sector uint64
	offset uint32
}

// node is a file or directory of the filesystem. The directory entry is read
// from the device on every access, so all nodes of the same entry stay in sync.
// The root has no entry and synthesizes one.
type node struct {
	fs     *FileSystem
	slot   slotRef
	parent *node

	dir     bool
	isRoot  bool
	removed bool
}

// fileNode and dirNode provide the capabilities of a node.
type (
	fileNode node
	dirNode  node
)

func (n *node) Type() vfs.FileType {
	if n.dir {
		return vfs.TypeDirectory
	}
	return vfs.TypeRegular
}

func (n *node) Metadata() (vfs.Metadata, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	h, err := n.header()
	if err != nil {
		return vfs.Metadata{}, err
	}
	return metadataOf(&h), nil
}

func (n *node) AsFile() (vfs.FileOps, bool) {
	if n.dir {
		return nil, false
	}
	return (*fileNode)(n), true
}

func (n *node) AsDir() (vfs.DirOps, bool) {
	if !n.dir {
		return nil, false
	}
	return (*dirNode)(n), true
}

// inode is a number unique for every entry of the volume.
func (n *node) inode() uint64 {
	if n.isRoot {
		return 1
	}
	return slotInode(n.slot, n.fs.sectorSize)
}

func slotInode(ref slotRef, sectorSize uint32) uint64 {
	return ref.sector*uint64(sectorSize/entrySize) + uint64(ref.offset/entrySize)
}

// header loads the directory entry of the node.
func (n *node) header() (EntryHeader, error) {
	if err := n.fs.checkMounted(); err != nil {
		return EntryHeader{}, err
	}

	if n.isRoot {
		h := EntryHeader{Attribute: AttrDirectory}
		copy(h.Name[:], padRight(n.fs.boot.VolumeLabel, 11))
		h.SetFirstCluster(n.fs.boot.RootCluster)
		return h, nil
	}

	if n.removed {
		return EntryHeader{}, checkpoint.Errorf(vfs.ErrNotFound, "entry was removed")
	}

	buffer := make([]byte, n.fs.sectorSize)
	if err := n.fs.readSector(n.slot.sector, buffer); err != nil {
		return EntryHeader{}, err
	}

	record := buffer[n.slot.offset : n.slot.offset+entrySize]
	if record[0] == entryFree || record[0] == entryDeleted || isLongName(record[11]) {
		return EntryHeader{}, checkpoint.Errorf(vfs.ErrNotFound, "entry at sector %d offset %d does not exist anymore", n.slot.sector, n.slot.offset)
	}

	return decodeEntryHeader(record), nil
}

// store writes the directory entry of the node. The root entry is never written.
func (n *node) store(h *EntryHeader) error {
	if n.isRoot {
		return nil
	}

	buffer := make([]byte, n.fs.sectorSize)
	if err := n.fs.readSector(n.slot.sector, buffer); err != nil {
		return err
	}
	h.encode(buffer[n.slot.offset:])
	return n.fs.writeSector(n.slot.sector, buffer)
}

// dotDotCluster is the cluster a ".." entry pointing at n stores, 0 for the root.
func (n *node) dotDotCluster() (uint32, error) {
	if n.isRoot {
		return 0, nil
	}
	h, err := n.header()
	if err != nil {
		return 0, err
	}
	return h.FirstCluster(), nil
}

func (f *FileSystem) checkMounted() error {
	if f.unmounted {
		return checkpoint.Wrap(ErrUnmounted, vfs.ErrInvalidArgument)
	}
	return nil
}

// nodeAt returns the node of the entry at ref. Nodes still referenced
// elsewhere are reused so renames and removals reach every holder. The registry
// only holds weak references, nodes nobody uses any more are collected.
func (f *FileSystem) nodeAt(ref slotRef, parent *node, dir bool) *node {
	if n := f.nodes[ref].Value(); n != nil {
		return n
	}

	n := &node{
		fs:     f,
		slot:   ref,
		parent: parent,
		dir:    dir,
	}
	f.nodes[ref] = weak.Make(n)

	if len(f.nodes) >= f.pruneAt {
		f.pruneNodes()
	}
	return n
}

// pruneNodes drops the registry entries of collected nodes.
func (f *FileSystem) pruneNodes() {
	for ref, p := range f.nodes {
		if p.Value() == nil {
			delete(f.nodes, ref)
		}
	}
	f.pruneAt = max(2*len(f.nodes), minPruneAt)
}

func (f *FileSystem) moveNode(from, to slotRef) {
	n := f.nodes[from].Value()
	delete(f.nodes, from)
	if n == nil {
		return
	}
	n.slot = to
	f.nodes[to] = weak.Make(n)
}

func (f *FileSystem) forgetNode(ref slotRef) {
	if n := f.nodes[ref].Value(); n != nil {
		n.removed = true
	}
	delete(f.nodes, ref)
}

func (n *fileNode) node() *node {
	return (*node)(n)
}

func (n *fileNode) ReadAt(p []byte, off int64) (int, error) {
	f := n.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := n.node().header()
	if err != nil {
		return 0, err
	}
	return f.readData(&h, off, p)
}

func (n *fileNode) WriteAt(p []byte, off int64) (int, error) {
	f := n.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := n.node().header()
	if err != nil {
		return 0, err
	}
	if h.IsReadOnly() {
		return 0, checkpoint.Errorf(vfs.ErrPermissionDenied, "file is read-only")
	}

	written, err := f.writeData(&h, off, p)
	if written == 0 && err != nil && h.FirstCluster() == 0 {
		return 0, err
	}

	// Publish size and first cluster after the data is on the device.
	f.stamp(&h, false)
	if storeErr := n.node().store(&h); storeErr != nil {
		return written, storeErr
	}
	return written, err
}

func (n *fileNode) Truncate(size int64) error {
	f := n.fs
	f.mu.Lock()
	defer f.mu.Unlock()

	h, err := n.node().header()
	if err != nil {
		return err
	}
	if h.IsReadOnly() {
		return checkpoint.Errorf(vfs.ErrPermissionDenied, "file is read-only")
	}
	return f.truncateData(n.node(), &h, size)
}

func (n *fileNode) Sync() error {
	return n.fs.Sync()
}
