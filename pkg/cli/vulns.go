package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

func VulnsCSVCmd() *cobra.Command {
	project := ""
	version := ""
	component := ""
	output := ""

	cmd := &cobra.Command{
		Use:   "vulns-csv",
		Short: "Export the vulnerabilities of a project version as CSV",
		Long:  "Export the vulnerabilities of a project version as CSV, or list the project versions when no version is given",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			if err := runVulns(ctx, project, version, component, output); err != nil {
				log.Error().Err(err).Msg("vulns-csv failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "hub project name")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&version, "version", "", "", "hub project version name")
	cmd.Flags().StringVarP(&component, "component", "c", "", "only export this component")
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV file (default stdout)")

	return cmd
}

func runVulns(ctx context.Context, project, version, component, output string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := hubClient(ctx, cfg)
	if err != nil {
		return err
	}

	if version == "" {
		names, err := importer.VersionNames(ctx, c, project)
		if err != nil {
			return err
		}

		for _, name := range names {
			fmt.Println(name)
		}

		return nil
	}

	var w io.Writer = os.Stdout

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			log.Error().Err(err).Str("path", output).Msg("unable to create csv file")

			return err
		}
		defer f.Close()

		w = f
	}

	rows, err := importer.ExportVulnerabilities(ctx, c, w, project, version, component)
	if err != nil {
		return err
	}

	log.Info().Int("rows", rows).Str("project", project).Str("version", version).Msg("vulnerabilities exported")

	return nil
}
