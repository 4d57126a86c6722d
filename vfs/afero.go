package vfs

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/spf13/afero"
)

// AferoFs exposes a Vfs as afero.Fs.
// Relative names are treated as relative to "/" and all errors are returned as *os.PathError.
// Test them with errors.Is(err, fs.ErrNotExist) and friends, os.IsNotExist does not
// look into wrapped errors.
type AferoFs struct {
	vfs *Vfs
}

var _ afero.Fs = (*AferoFs)(nil)

// NewAferoFs wraps v.
func NewAferoFs(v *Vfs) *AferoFs {
	return &AferoFs{vfs: v}
}

// IOFS exposes v as read-only io/fs.FS.
// Its names are unrooted like all io/fs names, e.g. "dir/file.txt".
func IOFS(v *Vfs) fs.FS {
	return afero.NewIOFS(NewAferoFs(v))
}

func absolute(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}

func pathError(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &os.PathError{Op: op, Path: name, Err: err}
}

func (a *AferoFs) Name() string {
	return "fatvfs"
}

func (a *AferoFs) Create(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (a *AferoFs) Mkdir(name string, _ os.FileMode) error {
	return pathError("mkdir", name, a.vfs.Mkdir(absolute(name)))
}

// MkdirAll creates name and all missing parents.
func (a *AferoFs) MkdirAll(name string, perm os.FileMode) error {
	clean := path.Clean(absolute(name))

	meta, err := a.vfs.Stat(clean)
	if err == nil {
		if meta.IsDir() {
			return nil
		}
		return pathError("mkdir", name, checkpoint.Errorf(ErrNotDirectory, "%s is not a directory", clean))
	}

	if clean != "/" {
		if err := a.MkdirAll(path.Dir(clean), perm); err != nil {
			return err
		}
	}

	err = a.vfs.Mkdir(clean)
	if errors.Is(err, ErrExists) {
		return nil
	}
	return pathError("mkdir", name, err)
}

func (a *AferoFs) Open(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDONLY, 0)
}

// OpenFile opens files with Vfs.Open and directories with Vfs.OpenDir.
// perm is ignored, new files always get DefaultPermissions.
func (a *AferoFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	abs := absolute(name)
	flags := FlagsFromOS(flag)

	file, err := a.vfs.Open(abs, flags)
	if errors.Is(err, ErrIsDirectory) && !flags.writes() && !flags.Has(OpenCreate) {
		file, err = a.vfs.OpenDir(abs)
	}
	if err != nil {
		return nil, pathError("open", name, err)
	}

	return file, nil
}

func (a *AferoFs) Remove(name string) error {
	return pathError("remove", name, a.vfs.Remove(absolute(name)))
}

// RemoveAll removes name and its content. A missing name is no error.
func (a *AferoFs) RemoveAll(name string) error {
	clean := path.Clean(absolute(name))

	meta, err := a.vfs.Stat(clean)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return pathError("removeall", name, err)
	}

	if meta.IsDir() {
		entries, err := a.vfs.ReadDir(clean)
		if err != nil {
			return pathError("removeall", name, err)
		}

		// Remove in a stable order so failures are reproducible.
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})

		for _, entry := range entries {
			if err := a.RemoveAll(path.Join(clean, entry.Name)); err != nil {
				return err
			}
		}
	}

	return pathError("removeall", name, a.vfs.Remove(clean))
}

func (a *AferoFs) Rename(oldname, newname string) error {
	return pathError("rename", oldname, a.vfs.Rename(absolute(oldname), absolute(newname)))
}

func (a *AferoFs) Stat(name string) (os.FileInfo, error) {
	clean := path.Clean(absolute(name))

	meta, err := a.vfs.Stat(clean)
	if err != nil {
		return nil, pathError("stat", name, err)
	}

	base := path.Base(clean)
	if clean == "/" {
		base = "/"
	}
	return meta.FileInfo(base), nil
}

func (a *AferoFs) Chmod(name string, _ os.FileMode) error {
	return pathError("chmod", name, checkpoint.Errorf(ErrNotSupported, "chmod"))
}

func (a *AferoFs) Chown(name string, _, _ int) error {
	return pathError("chown", name, checkpoint.Errorf(ErrNotSupported, "chown"))
}

func (a *AferoFs) Chtimes(name string, _ time.Time, _ time.Time) error {
	return pathError("chtimes", name, checkpoint.Errorf(ErrNotSupported, "chtimes"))
}
