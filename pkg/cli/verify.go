package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

/*
bomsync fossy verify --dir <package-dir> --folder <folder-id> --missing <spdx-file>
*/

func FossyVerifyCmd() *cobra.Command {
	dir := ""
	folderID := 0
	missing := ""

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify that the package files of a directory were uploaded",
		Long:  "Verify that every package file of a directory has an upload with the same checksum in a folder",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			fc, _, _, err := fossyFromFlags()
			if err != nil {
				log.Error().Err(err).Msg("verify failed")
				os.Exit(1)
			}

			absent, err := importer.VerifyUploads(ctx, fc, dir, folderID, missing)
			for _, entry := range absent {
				fmt.Println(entry.Path)
			}

			if err != nil {
				log.Error().Err(err).Msg("verify failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory of package files")
	_ = cmd.MarkFlagRequired("dir")
	cmd.Flags().IntVarP(&folderID, "folder", "", 0, "FOSSology folder id")
	_ = cmd.MarkFlagRequired("folder")
	cmd.Flags().StringVarP(&missing, "missing", "m", "", "a output SBOM file with missing entries")

	return cmd
}
