package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

func MavenToFossyCmd() *cobra.Command {
	opts := importer.MavenOptions{}
	file := ""
	server := ""

	cmd := &cobra.Command{
		Use:   "maven-to-fossy",
		Short: "Scan the maven sources of a BOM with FOSSology",
		Long: "Find the sources jar of every maven component of a project version BOM, optionally upload it " +
			"to FOSSology and copy the copyrights FOSSology found back to the hub",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			if err := runMaven(ctx, opts, file, server); err != nil {
				log.Error().Err(err).Msg("maven-to-fossy failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "hub project name")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&opts.Version, "version", "", "", "hub project version name")
	_ = cmd.MarkFlagRequired("version")
	cmd.Flags().IntVarP(&opts.FolderID, "folder", "", 0, "FOSSology folder id")
	_ = cmd.MarkFlagRequired("folder")
	cmd.Flags().BoolVarP(&opts.Upload, "upload", "u", false, "upload the sources jars to FOSSology")
	cmd.Flags().BoolVarP(&opts.UpdateCopyright, "update-copyright", "", false, "copy FOSSology copyrights to the hub origins")
	cmd.Flags().DurationVarP(&opts.Pause, "pause", "", importer.DefaultPause, "pause after each upload")
	cmd.Flags().StringVarP(&file, "file", "", "", "FOSSology config.ini (default config.ini)")
	cmd.Flags().StringVarP(&server, "server", "", "", "config.ini section (default prod)")

	return cmd
}

func runMaven(ctx context.Context, opts importer.MavenOptions, file, server string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := hubClient(ctx, cfg)
	if err != nil {
		return err
	}

	fc, _, err := fossyClient(cfg, file, server)
	if err != nil {
		return err
	}

	overview, err := importer.MavenToFossy(ctx, c, fc, opts)
	if overview != nil {
		printOverview(overview)
	}

	return err
}

func printOverview(o *importer.MavenOverview) {
	buckets := []struct {
		name string
		keys []string
	}{
		{"Good", o.Good},
		{"404", o.NotFound},
		{"Bad", o.Bad},
		{"Ignored", o.Ignored},
		{"Not maven", o.NotMaven},
	}

	for _, b := range buckets {
		fmt.Printf("%s (%d):\n", b.name, len(b.keys))

		for _, key := range b.keys {
			fmt.Printf("  %s\n", key)
		}
	}

	keys := make([]string, 0, len(o.Findings))
	for key := range o.Findings {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Printf("%s:\n", key)
		printFindings(o.Findings[key])
	}

	fmt.Printf("%d components\n", o.Total)
}
