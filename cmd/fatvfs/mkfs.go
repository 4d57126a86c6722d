package main

import (
	"fmt"
	"math/bits"

	"github.com/aligator/fatvfs/blockdev"
	"github.com/aligator/fatvfs/fat32"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func mkfsCmd() *cobra.Command {
	var (
		sizeMiB     int64
		clusterSize uint32
		sectorSize  uint32
		label       string
	)
	cmd := &cobra.Command{
		Use:   "mkfs IMAGE",
		Short: "create an empty FAT32 image",
		Long: `Create the image file IMAGE and format it as FAT32.
An existing file is overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sizeMiB <= 0 {
				return fmt.Errorf("invalid size %d MiB", sizeMiB)
			}
			if sectorSize < 512 || sectorSize > 4096 || bits.OnesCount32(sectorSize) != 1 {
				return fmt.Errorf("invalid sector size %d, use a power of two from 512 to 4096", sectorSize)
			}

			var spc uint8
			if clusterSize != 0 {
				if clusterSize < sectorSize || clusterSize%sectorSize != 0 || clusterSize/sectorSize > 128 {
					return fmt.Errorf("cluster size %d does not fit the sector size %d", clusterSize, sectorSize)
				}
				spc = uint8(clusterSize / sectorSize)
			}

			dev, err := blockdev.CreateImage(appFs, args[0], sizeMiB<<20, sectorSize)
			if err != nil {
				return err
			}
			defer dev.Close()

			if err := fat32.Format(dev, fat32.FormatOptions{
				Label:             label,
				SectorsPerCluster: spc,
			}); err != nil {
				return err
			}
			if err := dev.Sync(); err != nil {
				return err
			}

			log.Infof("Created %s (%d MiB)", args[0], sizeMiB)
			return nil
		},
	}

	cmd.Flags().Int64Var(&sizeMiB, "size", 64, "Image size in MiB")
	cmd.Flags().Uint32Var(&clusterSize, "cluster-size", 0, "Cluster size in bytes, chosen from the image size if 0")
	cmd.Flags().Uint32Var(&sectorSize, "sector-size", 512, "Sector size in bytes")
	cmd.Flags().StringVar(&label, "label", "", "Volume label")

	return cmd
}
