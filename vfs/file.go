package vfs

import (
	"io"
	"os"
	"path"
	"sync"

	"github.com/aligator/fatvfs/checkpoint"
)

// File is an open file or directory of a Vfs. It keeps its own offset and
// is safe for concurrent use.
// Directories are only opened through OpenDir and support just the Readdir methods,
// Seek to the start and Close.
type File struct {
	mu sync.Mutex

	name  string
	node  Node
	file  FileOps
	dir   DirOps
	flags OpenFlag
	mount *mountPoint
	// vfs is set for directories to find mount points among the entries.
	vfs *Vfs

	offset int64
	// listing is the directory content read by the first Readdir call.
	listing []DirEntry
	closed  bool
}

func newFile(name string, node Node, ops FileOps, flags OpenFlag, mount *mountPoint) *File {
	mount.acquire()
	return &File{
		name:  name,
		node:  node,
		file:  ops,
		flags: flags,
		mount: mount,
	}
}

// OpenDir opens the directory p for listing its content.
func (v *Vfs) OpenDir(p string) (*File, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	r, err := v.resolve(clean)
	if err != nil {
		return nil, err
	}

	dir, ok := r.node.AsDir()
	if !ok {
		return nil, checkpoint.Errorf(ErrNotDirectory, "%s is not a directory", clean)
	}

	r.mount.acquire()
	return &File{
		name:  clean,
		node:  r.node,
		dir:   dir,
		flags: OpenRead,
		mount: r.mount,
		vfs:   v,
	}, nil
}

func (f *File) check(need OpenFlag) error {
	if f.closed {
		return checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}
	if f.file == nil {
		return checkpoint.Errorf(ErrIsDirectory, "%s is a directory", f.name)
	}
	if f.flags&need == 0 {
		return checkpoint.Errorf(ErrPermissionDenied, "%s is not open for this access", f.name)
	}
	return nil
}

func (f *File) size() (int64, error) {
	meta, err := f.node.Metadata()
	if err != nil {
		return 0, err
	}
	return meta.Size, nil
}

// Name returns the absolute path the file was opened with.
func (f *File) Name() string {
	return f.name
}

// Close releases the file. Closing it twice returns an error.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}

	f.closed = true
	f.listing = nil
	f.mount.release()
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(OpenRead); err != nil {
		return 0, err
	}

	if len(p) == 0 {
		return 0, nil
	}

	n, err := f.file.ReadAt(p, f.offset)
	f.offset += int64(n)
	if err != nil {
		return n, err
	}

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt reads len(p) bytes at off without moving the offset of the file.
// Like io.ReaderAt it returns io.EOF if less than len(p) bytes could be read.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(OpenRead); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, checkpoint.Errorf(ErrInvalidArgument, "negative offset %d", off)
	}

	n, err := f.file.ReadAt(p, off)
	if err != nil {
		return n, err
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Write writes p at the current offset or, if the file was opened with OpenAppend,
// at the end of the file.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(OpenWrite); err != nil {
		return 0, err
	}

	if f.flags.Has(OpenAppend) {
		size, err := f.size()
		if err != nil {
			return 0, err
		}
		f.offset = size
	}

	n, err := f.file.WriteAt(p, f.offset)
	f.offset += int64(n)
	return n, err
}

// WriteAt writes p at off. It is not allowed for files opened with OpenAppend.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(OpenWrite); err != nil {
		return 0, err
	}
	if f.flags.Has(OpenAppend) {
		return 0, checkpoint.Errorf(ErrInvalidArgument, "WriteAt on %s which is opened for appending", f.name)
	}

	return f.file.WriteAt(p, off)
}

func (f *File) WriteString(s string) (int, error) {
	return f.Write([]byte(s))
}

// Seek sets the offset for the next Read or Write.
// Seeking before the start with io.SeekCurrent or io.SeekEnd stops at 0,
// a negative absolute offset is invalid. Seeking past the end is allowed.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}

	if f.file == nil {
		// Directories can only be rewound.
		if offset != 0 || whence != io.SeekStart {
			return 0, checkpoint.Errorf(ErrIsDirectory, "%s is a directory", f.name)
		}
		f.offset = 0
		f.listing = nil
		return 0, nil
	}

	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, checkpoint.Errorf(ErrInvalidArgument, "negative offset %d", offset)
		}
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		size, err := f.size()
		if err != nil {
			return 0, err
		}
		offset += size
	default:
		return 0, checkpoint.Errorf(ErrInvalidArgument, "invalid whence %d", whence)
	}

	if offset < 0 {
		offset = 0
	}

	f.offset = offset
	return offset, nil
}

func (f *File) Truncate(size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.check(OpenWrite); err != nil {
		return err
	}
	if size < 0 {
		return checkpoint.Errorf(ErrInvalidArgument, "negative size %d", size)
	}

	return f.file.Truncate(size)
}

func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}
	if f.file == nil {
		return f.mount.fs.Sync()
	}
	return f.file.Sync()
}

// Metadata returns the current metadata of the file.
func (f *File) Metadata() (Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return Metadata{}, checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}
	return f.node.Metadata()
}

func (f *File) Stat() (os.FileInfo, error) {
	meta, err := f.Metadata()
	if err != nil {
		return nil, err
	}
	return meta.FileInfo(path.Base(f.name)), nil
}

// Readdir reads the directory content like os.File.Readdir:
// With count > 0 at most count entries are returned and io.EOF once nothing is left.
// With count <= 0 all remaining entries are returned.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, checkpoint.Wrap(os.ErrClosed, ErrInvalidArgument)
	}
	if f.dir == nil {
		return nil, checkpoint.Errorf(ErrNotDirectory, "%s is not a directory", f.name)
	}

	if f.listing == nil {
		entries, err := f.dir.ReadDir()
		if err != nil {
			return nil, err
		}
		f.listing = entries
	}

	remaining := f.listing[f.offset:]
	if count > 0 {
		if len(remaining) == 0 {
			return nil, io.EOF
		}
		if count < len(remaining) {
			remaining = remaining[:count]
		}
	}

	result := make([]os.FileInfo, 0, len(remaining))
	for _, entry := range remaining {
		f.offset++

		node, err := f.child(entry.Name)
		if err != nil {
			return result, err
		}
		meta, err := node.Metadata()
		if err != nil {
			return result, err
		}
		result = append(result, meta.FileInfo(entry.Name))
	}

	return result, nil
}

// child looks up an entry of the directory. A mount point is reported as the
// root of the filesystem mounted there.
func (f *File) child(name string) (Node, error) {
	f.vfs.mu.RLock()
	m, ok := f.vfs.mounts[path.Join(f.name, name)]
	f.vfs.mu.RUnlock()

	if ok {
		return m.fs.Root(), nil
	}
	return f.dir.Lookup(name)
}

// Readdirnames is like Readdir but only returns the names.
func (f *File) Readdirnames(count int) ([]string, error) {
	infos, err := f.Readdir(count)

	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, err
}
