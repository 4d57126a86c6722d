// fatvfs inspects and modifies FAT32 image files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aligator/fatvfs/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	defaultLogFormatter = &log.TextFormatter{}

	// appFs is where images and config files are read from.
	appFs afero.Fs = afero.NewOsFs()
)

// infoFormatter prints Info() log events without decoration.
type infoFormatter struct {
}

func (f *infoFormatter) Format(entry *log.Entry) ([]byte, error) {
	if entry.Level == log.InfoLevel {
		return append([]byte(entry.Message), '\n'), nil
	}
	return defaultLogFormatter.Format(entry)
}

// globalFlags select the images a command works on.
type globalFlags struct {
	configPath string
	image      string
	readOnly   bool
	longNames  bool
	blockSize  uint32
	verbose    bool
	quiet      bool
}

// loadConfig returns the config file or, with --image, a config mounting just
// that image at "/".
func (g *globalFlags) loadConfig() (*config.Config, error) {
	if g.configPath != "" && g.image != "" {
		return nil, fmt.Errorf("--config and --image cannot be used together")
	}

	if g.configPath != "" {
		return config.Load(appFs, g.configPath)
	}
	if g.image == "" {
		return nil, fmt.Errorf("either --config or --image is required")
	}

	return &config.Config{
		LogLevel: log.GetLevel().String(),
		Mounts: []config.Mount{{
			Path:      "/",
			Image:     g.image,
			ReadOnly:  g.readOnly,
			LongNames: g.longNames,
			BlockSize: g.blockSize,
		}},
	}, nil
}

// withNamespace opens the namespace, runs fn and closes it again.
func (g *globalFlags) withNamespace(ctx context.Context, fn func(ns *config.Namespace) error) error {
	c, err := g.loadConfig()
	if err != nil {
		return err
	}
	if g.configPath != "" && !g.verbose && !g.quiet {
		log.SetLevel(c.Level())
	}

	ns, err := c.Open(ctx, appFs, log.WithField("component", "fatvfs"))
	if err != nil {
		return err
	}

	err = fn(ns)
	if closeErr := ns.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func newCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:               "fatvfs",
		Short:             "work with FAT32 images",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetFormatter(new(infoFormatter))
			log.SetLevel(log.InfoLevel)

			if g.quiet && g.verbose {
				return fmt.Errorf("can't set quiet and verbose flag at the same time")
			}
			if g.quiet {
				log.SetLevel(log.ErrorLevel)
			}
			if g.verbose {
				// Switch back to the standard formatter
				log.SetFormatter(defaultLogFormatter)
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
	}

	cmd.AddCommand(mkfsCmd())
	cmd.AddCommand(lsCmd(g))
	cmd.AddCommand(catCmd(g))
	cmd.AddCommand(putCmd(g))
	cmd.AddCommand(mkdirCmd(g))
	cmd.AddCommand(rmCmd(g))
	cmd.AddCommand(mvCmd(g))
	cmd.AddCommand(statCmd(g))
	cmd.AddCommand(dfCmd(g))

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML file with the mount table")
	cmd.PersistentFlags().StringVarP(&g.image, "image", "i", "", "Image to mount at / instead of using a config file")
	cmd.PersistentFlags().BoolVar(&g.readOnly, "read-only", false, "Mount the --image read-only")
	cmd.PersistentFlags().BoolVar(&g.longNames, "long-names", true, "Create long filenames on the --image")
	cmd.PersistentFlags().Uint32Var(&g.blockSize, "block-size", config.DefaultBlockSize, "Sector size of the --image")
	cmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Quiet execution")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose execution")

	return cmd
}

func main() {
	if err := newCmd().ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
