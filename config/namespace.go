package config

import (
	"context"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/fat32"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Namespace is the Vfs built from a Config together with the opened images.
type Namespace struct {
	*vfs.Vfs

	devices []*blockdev.ImageDevice
	log     *logrus.Entry
}

// Open opens every configured image, mounts its FAT32 volume and assembles the
// namespace. The images are opened concurrently, the mounts happen in path order.
func (c *Config) Open(ctx context.Context, fs afero.Fs, log *logrus.Entry) (*Namespace, error) {
	devices := make([]*blockdev.ImageDevice, len(c.Mounts))
	volumes := make([]*fat32.FileSystem, len(c.Mounts))

	g, ctx := errgroup.WithContext(ctx)
	for i, m := range c.Mounts {
		i, m := i, m
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			dev, err := blockdev.OpenImage(fs, m.Image, m.BlockSize, m.ReadOnly)
			if err != nil {
				return err
			}
			devices[i] = dev

			opts := []fat32.Option{fat32.WithLogger(log.WithField("image", m.Image))}
			if m.TrustFSInfo {
				opts = append(opts, fat32.WithTrustFSInfo())
			}
			if m.LongNames {
				opts = append(opts, fat32.WithLongNames())
			}

			volume, err := fat32.Mount(dev, opts...)
			if err != nil {
				return err
			}
			volumes[i] = volume
			return nil
		})
	}

	n := &Namespace{
		Vfs:     vfs.New(vfs.WithLogger(log)),
		devices: devices,
		log:     log,
	}

	if err := g.Wait(); err != nil {
		n.closeDevices()
		return nil, err
	}

	for i, m := range c.Mounts {
		var opts []vfs.MountOption
		if m.ReadOnly {
			opts = append(opts, vfs.ReadOnly())
		}

		if err := n.Mount(m.Path, volumes[i], opts...); err != nil {
			_ = n.Close()
			return nil, err
		}
	}

	return n, nil
}

// Close unmounts all filesystems, innermost first, and closes the images.
// It continues after errors and returns the first one.
func (n *Namespace) Close() error {
	var first error

	mounts := n.Mounts()
	for i := len(mounts) - 1; i >= 0; i-- {
		if err := n.Unmount(mounts[i]); err != nil {
			n.log.WithError(err).WithField("path", mounts[i]).Error("unmount failed")
			if first == nil {
				first = err
			}
		}
	}

	if err := n.closeDevices(); err != nil && first == nil {
		first = err
	}
	return first
}

func (n *Namespace) closeDevices() error {
	var first error
	for _, dev := range n.devices {
		if dev == nil {
			continue
		}
		if err := dev.Close(); err != nil && first == nil {
			first = err
		}
	}
	n.devices = nil
	return first
}
