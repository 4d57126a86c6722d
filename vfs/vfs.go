// Package vfs resolves absolute paths across mounted filesystems and provides
// file handles on top of them.
package vfs

import (
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/sirupsen/logrus"
)

type mountOptions struct {
	readOnly bool
}

// MountOption configures a mount.
type MountOption func(*mountOptions)

// ReadOnly rejects every modification through the mount with ErrReadOnly.
func ReadOnly() MountOption {
	return func(o *mountOptions) {
		o.readOnly = true
	}
}

// mountPoint is a filesystem grafted into the namespace at path.
type mountPoint struct {
	path     string
	fs       Filesystem
	readOnly bool
	// handles counts the open files.
	handles int64
}

func (m *mountPoint) acquire() {
	atomic.AddInt64(&m.handles, 1)
}

func (m *mountPoint) release() {
	atomic.AddInt64(&m.handles, -1)
}

// Vfs is the filesystem context: a mount table and the path resolution over it.
// The filesystem mounted at "/" is the root of the namespace.
type Vfs struct {
	mu     sync.RWMutex
	mounts map[string]*mountPoint
	log    *logrus.Entry
}

// Option configures a Vfs.
type Option func(*Vfs)

// WithLogger sets the logger of the Vfs.
func WithLogger(log *logrus.Entry) Option {
	return func(v *Vfs) {
		if log != nil {
			v.log = log
		}
	}
}

// New creates an empty Vfs. Mount a filesystem at "/" before using it.
func New(opts ...Option) *Vfs {
	v := &Vfs{
		mounts: make(map[string]*mountPoint),
		log:    logrus.StandardLogger().WithField("component", "vfs"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// cleanPath rejects empty and relative paths and removes "." and ".." lexically.
func cleanPath(p string) (string, error) {
	if p == "" || p[0] != '/' {
		return "", checkpoint.Errorf(ErrInvalidPath, "%q is not absolute", p)
	}
	return path.Clean(p), nil
}

// resolved is the result of a path lookup.
type resolved struct {
	node  Node
	mount *mountPoint
}

// resolve walks the cleaned path p. Before every lookup the path accumulated
// so far is checked against the mount table and, on a match, the walk continues
// at the root of the mounted filesystem. The caller holds v.mu.
func (v *Vfs) resolve(p string) (resolved, error) {
	root, ok := v.mounts["/"]
	if !ok {
		return resolved{}, checkpoint.Errorf(ErrNotFound, "no filesystem mounted at /")
	}

	current := resolved{node: root.fs.Root(), mount: root}
	accumulated := "/"

	for _, component := range strings.Split(p, "/") {
		if component == "" {
			continue
		}

		if m, ok := v.mounts[accumulated]; ok {
			current = resolved{node: m.fs.Root(), mount: m}
		}

		dir, ok := current.node.AsDir()
		if !ok {
			return resolved{}, checkpoint.Errorf(ErrNotDirectory, "%s is not a directory", accumulated)
		}

		next, err := dir.Lookup(component)
		if err != nil {
			return resolved{}, err
		}

		current.node = next
		accumulated = path.Join(accumulated, component)
	}

	// The path itself may be a mount point.
	if m, ok := v.mounts[accumulated]; ok {
		current = resolved{node: m.fs.Root(), mount: m}
	}

	return current, nil
}

// resolveParent resolves the directory containing p and returns it with the last path element.
func (v *Vfs) resolveParent(p string) (DirOps, *mountPoint, string, error) {
	if p == "/" {
		return nil, nil, "", checkpoint.Errorf(ErrInvalidPath, "the root has no parent")
	}

	parent, err := v.resolve(path.Dir(p))
	if err != nil {
		return nil, nil, "", err
	}

	dir, ok := parent.node.AsDir()
	if !ok {
		return nil, nil, "", checkpoint.Errorf(ErrNotDirectory, "%s is not a directory", path.Dir(p))
	}
	return dir, parent.mount, path.Base(p), nil
}

// hasMountsBelow reports whether a mount point exists inside of p.
func (v *Vfs) hasMountsBelow(p string) bool {
	prefix := strings.TrimSuffix(p, "/") + "/"
	for mountPath := range v.mounts {
		if mountPath != p && strings.HasPrefix(mountPath, prefix) {
			return true
		}
	}
	return false
}

func readOnlyErr(m *mountPoint, p string) error {
	if m.readOnly {
		return checkpoint.Errorf(ErrReadOnly, "%s is on the read-only mount %s", p, m.path)
	}
	return nil
}

// Lookup returns the node at the absolute path p.
func (v *Vfs) Lookup(p string) (Node, error) {
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
	return r.node, nil
}

// Open opens the regular file at p.
//
// With OpenCreate a missing file is created in its parent directory, together
// with OpenExclusive an existing file results in ErrExists.
// Directories cannot be opened (ErrIsDirectory).
func (v *Vfs) Open(p string, flags OpenFlag) (*File, error) {
	if err := flags.validate(); err != nil {
		return nil, err
	}

	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	r, err := v.resolve(clean)
	switch {
	case err == nil:
		if flags.Has(OpenCreate | OpenExclusive) {
			return nil, checkpoint.Errorf(ErrExists, "%s already exists", clean)
		}

	case errors.Is(err, ErrNotFound) && flags.Has(OpenCreate):
		dir, mount, name, err := v.resolveParent(clean)
		if err != nil {
			return nil, err
		}
		if err := readOnlyErr(mount, clean); err != nil {
			return nil, err
		}

		node, err := dir.Create(name, DefaultPermissions())
		if err != nil {
			return nil, err
		}

		v.log.WithField("path", clean).Debug("created file")
		r = resolved{node: node, mount: mount}

	default:
		return nil, err
	}

	if r.node.Type() == TypeDirectory {
		return nil, checkpoint.Errorf(ErrIsDirectory, "%s is a directory", clean)
	}

	ops, ok := r.node.AsFile()
	if !ok {
		return nil, checkpoint.Errorf(ErrNotSupported, "%s is a %s", clean, r.node.Type())
	}

	if flags.writes() {
		if err := readOnlyErr(r.mount, clean); err != nil {
			return nil, err
		}
	}

	if flags.Has(OpenTruncate) {
		if err := ops.Truncate(0); err != nil {
			return nil, err
		}
	}

	return newFile(clean, r.node, ops, flags, r.mount), nil
}

// Mkdir creates the directory p.
func (v *Vfs) Mkdir(p string) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, ok := v.mounts[clean]; ok {
		return checkpoint.Errorf(ErrExists, "%s is a mount point", clean)
	}

	dir, mount, name, err := v.resolveParent(clean)
	if err != nil {
		return err
	}
	if err := readOnlyErr(mount, clean); err != nil {
		return err
	}

	_, err = dir.Mkdir(name, DefaultPermissions())
	return err
}

// Remove removes the file or empty directory p. Mount points cannot be removed.
func (v *Vfs) Remove(p string) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	if _, ok := v.mounts[clean]; ok || v.hasMountsBelow(clean) {
		return checkpoint.Errorf(ErrBusy, "%s is or contains a mount point", clean)
	}

	dir, mount, name, err := v.resolveParent(clean)
	if err != nil {
		return err
	}
	if err := readOnlyErr(mount, clean); err != nil {
		return err
	}

	return dir.Unlink(name)
}

// ReadDir lists the directory p.
func (v *Vfs) ReadDir(p string) ([]DirEntry, error) {
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

	return dir.ReadDir()
}

// Rename renames oldPath to newPath. Both must be in the same directory,
// moving between directories is not supported.
func (v *Vfs) Rename(oldPath, newPath string) error {
	oldClean, err := cleanPath(oldPath)
	if err != nil {
		return err
	}
	newClean, err := cleanPath(newPath)
	if err != nil {
		return err
	}

	if path.Dir(oldClean) != path.Dir(newClean) {
		return checkpoint.Errorf(ErrNotSupported, "cannot move %s to another directory", oldClean)
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, p := range []string{oldClean, newClean} {
		if _, ok := v.mounts[p]; ok || v.hasMountsBelow(p) {
			return checkpoint.Errorf(ErrBusy, "%s is or contains a mount point", p)
		}
	}

	dir, mount, oldName, err := v.resolveParent(oldClean)
	if err != nil {
		return err
	}
	if err := readOnlyErr(mount, oldClean); err != nil {
		return err
	}

	return dir.Rename(oldName, path.Base(newClean))
}

// Stat returns the metadata of p.
func (v *Vfs) Stat(p string) (Metadata, error) {
	node, err := v.Lookup(p)
	if err != nil {
		return Metadata{}, err
	}
	return node.Metadata()
}

// StatFS describes the filesystem p is on.
func (v *Vfs) StatFS(p string) (StatFS, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return StatFS{}, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	r, err := v.resolve(clean)
	if err != nil {
		return StatFS{}, err
	}
	return r.mount.fs.StatFS()
}

// Mount grafts fs into the namespace at p. Except for the first mount at "/"
// p has to be an existing directory which is no mount point yet.
func (v *Vfs) Mount(p string, fs Filesystem, opts ...MountOption) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}

	o := mountOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.mounts[clean]; ok {
		return checkpoint.Errorf(ErrBusy, "%s is already a mount point", clean)
	}

	if clean != "/" {
		r, err := v.resolve(clean)
		if err != nil {
			return err
		}
		if r.node.Type() != TypeDirectory {
			return checkpoint.Errorf(ErrNotDirectory, "cannot mount on %s", clean)
		}
	}

	v.mounts[clean] = &mountPoint{
		path:     clean,
		fs:       fs,
		readOnly: o.readOnly,
	}

	v.log.WithFields(logrus.Fields{
		"path":     clean,
		"readOnly": o.readOnly,
	}).Info("mounted filesystem")
	return nil
}

// Unmount removes the mount at p and unmounts its filesystem.
// It fails with ErrBusy while files are open or other filesystems are mounted inside of it.
func (v *Vfs) Unmount(p string) error {
	clean, err := cleanPath(p)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	m, ok := v.mounts[clean]
	if !ok {
		return checkpoint.Errorf(ErrInvalidArgument, "%s is not a mount point", clean)
	}

	if handles := atomic.LoadInt64(&m.handles); handles > 0 {
		return checkpoint.Errorf(ErrBusy, "%s has %d open files", clean, handles)
	}
	if v.hasMountsBelow(clean) {
		return checkpoint.Errorf(ErrBusy, "other filesystems are mounted inside of %s", clean)
	}

	if err := m.fs.Unmount(); err != nil {
		return err
	}
	delete(v.mounts, clean)

	v.log.WithField("path", clean).Info("unmounted filesystem")
	return nil
}

// Mounts lists all mount points.
func (v *Vfs) Mounts() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	result := make([]string, 0, len(v.mounts))
	for p := range v.mounts {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// Sync syncs every mounted filesystem. All filesystems are synced even if one fails,
// the first error is returned.
func (v *Vfs) Sync() error {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var first error
	for p, m := range v.mounts {
		if err := m.fs.Sync(); err != nil {
			v.log.WithError(err).WithField("path", p).Error("sync failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
