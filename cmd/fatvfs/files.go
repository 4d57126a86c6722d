package main

import (
	"fmt"
	"io"
	"path"

	"github.com/aligator/fatvfs/config"
	"github.com/aligator/fatvfs/vfs"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const timeFormat = "2006-01-02 15:04:05"

func lsCmd(g *globalFlags) *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "ls [PATH]",
		Short: "list a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "/"
			if len(args) == 1 {
				p = args[0]
			}

			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				dir, err := ns.OpenDir(p)
				if err != nil {
					return err
				}
				defer dir.Close()

				infos, err := dir.Readdir(-1)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, info := range infos {
					if long {
						fmt.Fprintf(out, "%s %10d %s %s\n", info.Mode(), info.Size(), info.ModTime().Format(timeFormat), info.Name())
					} else {
						fmt.Fprintln(out, info.Name())
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show mode, size and modification time")

	return cmd
}

func catCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH...",
		Short: "print files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				for _, p := range args {
					f, err := ns.Open(p, vfs.OpenRead)
					if err != nil {
						return err
					}

					_, err = io.Copy(cmd.OutOrStdout(), f)
					f.Close()
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func putCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "put SRC DST",
		Short: "copy a local file into the image",
		Long: `Copy the local file SRC to DST.
If DST is an existing directory the file keeps its name.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := appFs.Open(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				dst := args[1]
				if meta, err := ns.Stat(dst); err == nil && meta.IsDir() {
					dst = path.Join(dst, path.Base(args[0]))
				}

				f, err := ns.Open(dst, vfs.OpenWrite|vfs.OpenCreate|vfs.OpenTruncate)
				if err != nil {
					return err
				}

				n, err := io.Copy(f, src)
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}

				log.WithField("bytes", n).Debugf("copied %s to %s", args[0], dst)
				return nil
			})
		},
	}
}

func mkdirCmd(g *globalFlags) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir PATH...",
		Short: "create directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				a := vfs.NewAferoFs(ns.Vfs)
				for _, p := range args {
					var err error
					if parents {
						err = a.MkdirAll(p, 0755)
					} else {
						err = ns.Mkdir(p)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "Create missing parents, no error if the directory exists")

	return cmd
}

func rmCmd(g *globalFlags) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "remove files and directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				a := vfs.NewAferoFs(ns.Vfs)
				for _, p := range args {
					var err error
					if recursive {
						err = a.RemoveAll(p)
					} else {
						err = ns.Remove(p)
					}
					if err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Remove directories and their content")

	return cmd
}

func mvCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mv OLD NEW",
		Short: "rename a file or directory inside its directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				return ns.Rename(args[0], args[1])
			})
		},
	}
}

func statCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stat PATH",
		Short: "show the metadata of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				meta, err := ns.Stat(args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:     %s\n", args[0])
				fmt.Fprintf(out, "Type:     %s\n", meta.Type)
				fmt.Fprintf(out, "Size:     %d\n", meta.Size)
				fmt.Fprintf(out, "Mode:     %s\n", meta.FileInfo(path.Base(args[0])).Mode())
				fmt.Fprintf(out, "Hidden:   %t\n", meta.Hidden)
				fmt.Fprintf(out, "System:   %t\n", meta.System)
				fmt.Fprintf(out, "Created:  %s\n", meta.CreateTime.Format(timeFormat))
				fmt.Fprintf(out, "Modified: %s\n", meta.ModTime.Format(timeFormat))
				fmt.Fprintf(out, "Accessed: %s\n", meta.AccessTime.Format("2006-01-02"))
				return nil
			})
		},
	}
}

func dfCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "df [PATH]",
		Short: "show the capacity of the filesystem a path is on",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := "/"
			if len(args) == 1 {
				p = args[0]
			}

			return g.withNamespace(cmd.Context(), func(ns *config.Namespace) error {
				stat, err := ns.StatFS(p)
				if err != nil {
					return err
				}

				total := stat.TotalBlocks * uint64(stat.BlockSize)
				free := stat.FreeBlocks * uint64(stat.BlockSize)
				fmt.Fprintf(cmd.OutOrStdout(), "%-11s %12d %12d %12d\n", stat.Label, total, total-free, free)
				return nil
			})
		},
	}
}
