package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

func MissedImportsCmd() *cobra.Command {
	project := ""
	version := ""
	company := ""

	cmd := &cobra.Command{
		Use:   "missed-imports",
		Short: "List the components bdio scans could not map",
		Long:  "Walk the bdio code locations of a project version and list the external ids of unmapped components",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				log.Error().Err(err).Msg("missed-imports failed")
				os.Exit(1)
			}

			c, err := hubClient(ctx, cfg)
			if err != nil {
				log.Error().Err(err).Msg("missed-imports failed")
				os.Exit(1)
			}

			missed, err := importer.FindMissedImports(ctx, c, project, version, company)
			if err != nil {
				log.Error().Err(err).Msg("missed-imports failed")
				os.Exit(1)
			}

			fmt.Printf("%s components:\n", company)

			for _, id := range missed.Company {
				fmt.Printf("  %s\n", id)
			}

			fmt.Println("Other components:")

			for _, id := range missed.Other {
				fmt.Printf("  %s\n", id)
			}

			fmt.Printf("%d %s, %d other, %d total\n", len(missed.Company), company, len(missed.Other), missed.Total())
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "hub project name")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&version, "version", "", "", "hub project version name")
	_ = cmd.MarkFlagRequired("version")
	cmd.Flags().StringVarP(&company, "company", "c", "", "external id substring of company components")
	_ = cmd.MarkFlagRequired("company")

	return cmd
}
