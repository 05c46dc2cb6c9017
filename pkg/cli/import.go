package cli

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

/*
bomsync import-sbom --sbom-file <sbom> --project <name> --version <version>
*/

func ImportSBOMCmd() *cobra.Command {
	opts := importer.ImportOptions{}
	noValidate := false
	attempts := 0
	interval := time.Duration(0)

	cmd := &cobra.Command{
		Use:   "import-sbom",
		Short: "Import an SBOM into a project version and complete its BOM",
		Long: "Upload an SPDX or CycloneDX document to a project version, wait for the BOM to be computed " +
			"and add every package still missing from the BOM, creating custom components when needed",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			if err := runImport(ctx, opts, !noValidate, attempts, interval); err != nil {
				log.Error().Err(err).Msg("import-sbom failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.SBOMFile, "sbom-file", "s", "", "SPDX or CycloneDX document")
	_ = cmd.MarkFlagRequired("sbom-file")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "hub project name")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&opts.Version, "version", "", "", "hub project version name")
	_ = cmd.MarkFlagRequired("version")
	cmd.Flags().StringVarP(&opts.OutFile, "out-file", "o", "", "JSON list of packages missing from the BOM")
	cmd.Flags().StringVarP(&opts.MissingSBOM, "missing-sbom", "m", "", "SPDX document of packages missing from the BOM")
	cmd.Flags().StringVarP(&opts.License, "license", "l", "", "license of created custom components (default NOASSERTION)")
	cmd.Flags().BoolVarP(&noValidate, "no-spdx-validate", "", false, "skip SPDX validation")
	pollFlags(cmd, &attempts, &interval)

	return cmd
}

func runImport(ctx context.Context, opts importer.ImportOptions, validate bool,
	attempts int, interval time.Duration,
) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := hubClient(ctx, cfg)
	if err != nil {
		return err
	}

	if opts.License == "" {
		opts.License = cfg.Import.License
	}

	opts.Validate = validate
	opts.MaxAttempts, opts.Interval = pollSettings(cfg, attempts, interval)

	summary, err := importer.ImportSBOM(ctx, c, opts)
	if summary != nil {
		summary.Print(os.Stdout)
		summary.Log()
	}

	return err
}
