// Package config reads the mount table of the fatvfs tool.
package config

import (
	"fmt"
	"path"
	"sort"

	"github.com/aligator/fatvfs/checkpoint"
	"github.com/aligator/fatvfs/vfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// DefaultBlockSize is used for mounts without block_size.
const DefaultBlockSize = 512

// Config is the tool configuration.
type Config struct {
	// LogLevel is any level logrus.ParseLevel understands, it defaults to "info".
	LogLevel string  `yaml:"log_level"`
	Mounts   []Mount `yaml:"mounts"`
}

// Mount describes an image mounted into the namespace.
type Mount struct {
	Path        string `yaml:"path"`
	Image       string `yaml:"image"`
	ReadOnly    bool   `yaml:"read_only"`
	TrustFSInfo bool   `yaml:"trust_fsinfo"`
	LongNames   bool   `yaml:"long_names"`
	BlockSize   uint32 `yaml:"block_size"`
}

// Load reads and validates the config file name.
func Load(fs afero.Fs, name string) (*Config, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, checkpoint.From(err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, checkpoint.Wrap(err, fmt.Errorf("failed to parse %q", name))
	}
	return c, nil
}

// Parse decodes a YAML config, fills in the defaults and validates it.
// The mounts are sorted by path so parents come before their children.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, checkpoint.Wrap(err, vfs.ErrInvalidArgument)
	}

	if c.LogLevel == "" {
		c.LogLevel = logrus.InfoLevel.String()
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return nil, checkpoint.Wrap(err, vfs.ErrInvalidArgument)
	}

	for i := range c.Mounts {
		if c.Mounts[i].BlockSize == 0 {
			c.Mounts[i].BlockSize = DefaultBlockSize
		}
	}

	sort.SliceStable(c.Mounts, func(i, j int) bool {
		return c.Mounts[i].Path < c.Mounts[j].Path
	})

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if len(c.Mounts) == 0 {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "no mounts configured")
	}
	if c.Mounts[0].Path != "/" {
		return checkpoint.Errorf(vfs.ErrInvalidArgument, "nothing is mounted at /")
	}

	seen := make(map[string]bool, len(c.Mounts))
	for _, m := range c.Mounts {
		if m.Path == "" || m.Path[0] != '/' || path.Clean(m.Path) != m.Path {
			return checkpoint.Errorf(vfs.ErrInvalidPath, "mount path %q must be clean and absolute", m.Path)
		}
		if seen[m.Path] {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "%s is mounted twice", m.Path)
		}
		seen[m.Path] = true

		if m.Image == "" {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "mount %s has no image", m.Path)
		}
		if m.BlockSize < 512 || m.BlockSize&(m.BlockSize-1) != 0 {
			return checkpoint.Errorf(vfs.ErrInvalidArgument, "mount %s: invalid block size %d", m.Path, m.BlockSize)
		}
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
