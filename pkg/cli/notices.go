package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

func NoticesReportCmd() *cobra.Command {
	opts := importer.NoticesOptions{}
	attempts := 0
	interval := time.Duration(0)

	cmd := &cobra.Command{
		Use:   "notices-report",
		Short: "Render the license and copyright notices of a project version",
		Long:  "Generate a notices report with copyright texts on the hub and render it as HTML",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				log.Error().Err(err).Msg("notices-report failed")
				os.Exit(1)
			}

			c, err := hubClient(ctx, cfg)
			if err != nil {
				log.Error().Err(err).Msg("notices-report failed")
				os.Exit(1)
			}

			opts.MaxAttempts, opts.Interval = pollSettings(cfg, attempts, interval)

			output, err := importer.NoticesReport(ctx, c, opts)
			if err != nil {
				log.Error().Err(err).Msg("notices-report failed")
				os.Exit(1)
			}

			fmt.Println(output)
		},
	}

	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "hub project name")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&opts.Version, "version", "", "", "hub project version name")
	_ = cmd.MarkFlagRequired("version")
	cmd.Flags().StringVarP(&opts.Template, "template", "t", "", "html/template file replacing the built-in one")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "HTML file (default FOSS_Report_<project>_<version>.html)")
	cmd.Flags().StringVarP(&opts.JSONOutput, "json-output", "j", "", "keep the downloaded JSON report")
	pollFlags(cmd, &attempts, &interval)

	return cmd
}
