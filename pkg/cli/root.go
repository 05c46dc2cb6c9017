package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/buildgen"
	"stackerbuild.io/bomsync/pkg/config"
)

//nolint:gochecknoglobals
var (
	Binary     = "bomsync"
	Verbose    bool
	ConfigFile string
	BaseURL    string
	TokenFile  string
	NoVerify   bool
)

func NewRootCmd() *cobra.Command {
	showVersion := false

	cmd := &cobra.Command{
		Use:   Binary,
		Short: Binary,
		Long:  "Keep Black Duck BOMs in sync with SBOM documents and FOSSology findings",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			if showVersion {
				fmt.Printf("%s\n", buildgen.Version())
				os.Exit(0)
			}

			_ = cmd.Usage()
		},
	}

	cmd.AddCommand(ImportSBOMCmd())
	cmd.AddCommand(NoticesReportCmd())
	cmd.AddCommand(VulnsCSVCmd())
	cmd.AddCommand(UsersCmd())
	cmd.AddCommand(MissedImportsCmd())
	cmd.AddCommand(FossyCmd())
	cmd.AddCommand(MavenToFossyCmd())
	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
	cmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&ConfigFile, "config", "", config.DefaultPath(), "bomsync config file")
	cmd.PersistentFlags().StringVarP(&BaseURL, "base-url", "", "",
		"hub url (default $"+config.EnvHubURL+")")
	cmd.PersistentFlags().StringVarP(&TokenFile, "token-file", "", "",
		"file holding the hub api token (default $"+config.EnvHubToken+")")
	cmd.PersistentFlags().BoolVarP(&NoVerify, "no-verify", "", false, "skip TLS certificate verification")

	return cmd
}
