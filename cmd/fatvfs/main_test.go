package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command line args on the in-memory filesystem and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"-q"}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()

	out, err := run(t, args...)
	require.NoError(t, err, strings.Join(args, " "))
	return out
}

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()

	previous := appFs
	appFs = afero.NewMemMapFs()
	t.Cleanup(func() {
		appFs = previous
	})
	return appFs
}

func TestCLI(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "hello.txt", []byte("hello world"), 0644))

	mustRun(t, "mkfs", "disk.img", "--size", "8", "--cluster-size", "4096", "--label", "CLI")

	mustRun(t, "-i", "disk.img", "mkdir", "-p", "/docs/notes")
	mustRun(t, "-i", "disk.img", "put", "hello.txt", "/docs")
	mustRun(t, "-i", "disk.img", "put", "hello.txt", "/docs/notes/Second file.txt")

	assert.Equal(t, "hello world", mustRun(t, "-i", "disk.img", "cat", "/docs/hello.txt"))
	assert.Equal(t, "notes\nhello.txt\n", mustRun(t, "-i", "disk.img", "ls", "/docs"))

	long := mustRun(t, "-i", "disk.img", "ls", "-l", "/docs/notes")
	assert.Contains(t, long, "-rw-r--r--")
	assert.Contains(t, long, " 11 ")
	assert.Contains(t, long, "Second file.txt")

	stat := mustRun(t, "-i", "disk.img", "stat", "/docs")
	assert.Contains(t, stat, "Type:     directory")

	mustRun(t, "-i", "disk.img", "mv", "/docs/hello.txt", "/docs/world.txt")
	assert.Equal(t, "notes\nworld.txt\n", mustRun(t, "-i", "disk.img", "ls", "/docs"))

	_, err := run(t, "-i", "disk.img", "rm", "/docs")
	assert.Error(t, err)
	mustRun(t, "-i", "disk.img", "rm", "-r", "/docs")
	assert.Empty(t, mustRun(t, "-i", "disk.img", "ls"))

	df := mustRun(t, "-i", "disk.img", "df")
	assert.True(t, strings.HasPrefix(df, "CLI "), df)

	_, err = run(t, "-i", "disk.img", "--read-only", "mkdir", "/new")
	assert.Error(t, err)
}

func TestCLI_config(t *testing.T) {
	fs := useMemFs(t)

	mustRun(t, "mkfs", "root.img", "--size", "4", "--label", "ROOT")
	mustRun(t, "mkfs", "data.img", "--size", "4", "--label", "DATA")
	mustRun(t, "-i", "root.img", "mkdir", "/data")

	require.NoError(t, afero.WriteFile(fs, "fatvfs.yml", []byte(`
log_level: warn
mounts:
  - {path: /, image: root.img}
  - {path: /data, image: data.img, long_names: true}
`), 0644))

	require.NoError(t, afero.WriteFile(fs, "local.txt", []byte("data"), 0644))
	mustRun(t, "--config", "fatvfs.yml", "put", "local.txt", "/data/A long name.txt")

	assert.Equal(t, "data\n", mustRun(t, "--config", "fatvfs.yml", "ls", "/"))
	assert.Equal(t, "data", mustRun(t, "--config", "fatvfs.yml", "cat", "/data/a long name.txt"))

	df := mustRun(t, "--config", "fatvfs.yml", "df", "/data")
	assert.True(t, strings.HasPrefix(df, "DATA "), df)

	// The volume itself knows nothing about the mount.
	assert.Equal(t, "A long name.txt\n", mustRun(t, "-i", "data.img", "ls"))
}

func TestCLI_flags(t *testing.T) {
	useMemFs(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no image", args: []string{"ls"}},
		{name: "config and image", args: []string{"--config", "a.yml", "-i", "a.img", "ls"}},
		{name: "missing image", args: []string{"-i", "missing.img", "ls"}},
		{name: "invalid size", args: []string{"mkfs", "disk.img", "--size", "0"}},
		{name: "invalid cluster size", args: []string{"mkfs", "disk.img", "--cluster-size", "1000"}},
		{name: "zero sector size", args: []string{"mkfs", "disk.img", "--sector-size", "0", "--cluster-size", "4096"}},
		{name: "sector size no power of two", args: []string{"mkfs", "disk.img", "--sector-size", "1000"}},
		{name: "sector size too big", args: []string{"mkfs", "disk.img", "--sector-size", "8192"}},
		{name: "quiet and verbose", args: []string{"-v", "ls"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
