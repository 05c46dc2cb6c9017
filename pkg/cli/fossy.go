package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/config"
	"stackerbuild.io/bomsync/pkg/fossy"
	"stackerbuild.io/bomsync/pkg/importer"
)

//nolint:gochecknoglobals
var (
	FossyFile   string
	FossyServer string
)

func FossyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fossy",
		Short: "Upload packages to FOSSology and read its findings",
		Long:  "Upload packages to FOSSology and read its findings",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Usage()
		},
	}

	cmd.AddCommand(FossyUploadFilesCmd())
	cmd.AddCommand(FossyUploadURLsCmd())
	cmd.AddCommand(FossyReportCmd())
	cmd.AddCommand(FossyVerifyCmd())
	cmd.AddCommand(FossyConfigCmd())
	cmd.PersistentFlags().StringVarP(&FossyFile, "file", "", "", "FOSSology config.ini (default config.ini)")
	cmd.PersistentFlags().StringVarP(&FossyServer, "server", "", "", "config.ini section (default prod)")

	return cmd
}

// uploadFlags binds the flags shared by the upload commands.
func uploadFlags(cmd *cobra.Command, opts *importer.UploadOptions) {
	cmd.Flags().IntVarP(&opts.FolderID, "folder", "", 0, "FOSSology folder id")
	_ = cmd.MarkFlagRequired("folder")
	cmd.Flags().DurationVarP(&opts.Pause, "pause", "", importer.DefaultPause, "pause between two uploads")
	cmd.Flags().BoolVarP(&opts.Wait, "wait", "w", false, "wait for the analysis of each upload")
	pollFlags(cmd, &opts.MaxAttempts, &opts.Interval)
}

// fossyFromFlags builds the FOSSology client of the fossy commands.
func fossyFromFlags() (*fossy.Client, *config.FossyServer, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	fc, srv, err := fossyClient(cfg, FossyFile, FossyServer)
	if err != nil {
		return nil, nil, nil, err
	}

	return fc, srv, cfg, nil
}

func printUploaded(uploaded []importer.Uploaded) {
	for _, up := range uploaded {
		fmt.Printf("%s: upload %d, job %d\n", up.Source, up.UploadID, up.JobID)
	}
}

func FossyUploadFilesCmd() *cobra.Command {
	dir := ""
	opts := importer.UploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload-files",
		Short: "Upload the package files of a directory",
		Long:  "Upload every regular file of a directory to a FOSSology folder and schedule its analysis",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			fc, _, cfg, err := fossyFromFlags()
			if err != nil {
				log.Error().Err(err).Msg("upload-files failed")
				os.Exit(1)
			}

			opts.MaxAttempts, opts.Interval = pollSettings(cfg, opts.MaxAttempts, opts.Interval)

			uploaded, err := importer.UploadFiles(ctx, fc, dir, opts)
			printUploaded(uploaded)

			if err != nil {
				log.Error().Err(err).Msg("upload-files failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory of package files")
	_ = cmd.MarkFlagRequired("dir")
	cmd.Flags().BoolVarP(&opts.SkipExisting, "skip-existing", "", false, "skip files already uploaded to the folder")
	uploadFlags(cmd, &opts)

	return cmd
}

func FossyUploadURLsCmd() *cobra.Command {
	urlsFile := ""
	opts := importer.UploadOptions{}

	cmd := &cobra.Command{
		Use:   "upload-urls",
		Short: "Have FOSSology download a list of URLs",
		Long:  "Have FOSSology download every URL of a file, one per line, into a folder and schedule the analysis",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			fc, _, cfg, err := fossyFromFlags()
			if err != nil {
				log.Error().Err(err).Msg("upload-urls failed")
				os.Exit(1)
			}

			opts.MaxAttempts, opts.Interval = pollSettings(cfg, opts.MaxAttempts, opts.Interval)

			uploaded, err := importer.UploadURLs(ctx, fc, urlsFile, opts)
			printUploaded(uploaded)

			if err != nil {
				log.Error().Err(err).Msg("upload-urls failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&urlsFile, "urls-file", "u", "", "file with one download URL per line")
	_ = cmd.MarkFlagRequired("urls-file")
	uploadFlags(cmd, &opts)

	return cmd
}

func FossyReportCmd() *cobra.Command {
	folderID := 0
	assignee := ""
	search := ""

	cmd := &cobra.Command{
		Use:   "report",
		Short: "List the uploads of a folder with their licenses and copyrights",
		Long:  "List the uploads of a folder with their licenses and copyrights",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			fc, srv, _, err := fossyFromFlags()
			if err != nil {
				log.Error().Err(err).Msg("report failed")
				os.Exit(1)
			}

			if assignee == "" {
				assignee = srv.Assignee
			}

			findings, err := importer.FolderFindings(ctx, fc, folderID, assignee, search)
			if err != nil {
				log.Error().Err(err).Msg("report failed")
				os.Exit(1)
			}

			printFindings(findings)
		},
	}

	cmd.Flags().IntVarP(&folderID, "folder", "", 0, "FOSSology folder id")
	_ = cmd.MarkFlagRequired("folder")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "only uploads with this assignee (default from config.ini)")
	cmd.Flags().StringVarP(&search, "search", "s", "", "only uploads with this name")

	return cmd
}

func printFindings(findings []importer.Findings) {
	for _, f := range findings {
		licenses := make([]string, 0, len(f.Licenses))
		for _, l := range f.Licenses {
			licenses = append(licenses, fmt.Sprintf("%s (%d)", l.Name, l.ScannerCount))
		}

		fmt.Printf("%s [%d]\n", f.Upload.UploadName, f.Upload.ID)
		fmt.Printf("  licenses: %s\n", strings.Join(licenses, ", "))
		fmt.Printf("  copyrights: %s\n", f.Copyrights)
	}
}

func FossyConfigCmd() *cobra.Command {
	srv := config.FossyServer{}
	token := ""

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write a server section of FOSSology's config.ini",
		Long:  "Write the token, group and assignee of a server section of FOSSology's config.ini",
		Run: func(cmd *cobra.Command, args []string) {
			file, section := FossyFile, FossyServer
			if file == "" {
				file = config.DefaultFossyConfig
			}

			if section == "" {
				section = config.DefaultFossySection
			}

			srv.BearerToken = token

			if err := config.SaveFossy(file, section, srv); err != nil {
				log.Error().Err(err).Msg("config failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&srv.URL, "url", "", "", "FOSSology API url")
	cmd.Flags().StringVarP(&srv.GroupName, "group", "g", "", "FOSSology group name")
	_ = cmd.MarkFlagRequired("group")
	cmd.Flags().StringVarP(&token, "token", "t", "", "FOSSology bearer token")
	_ = cmd.MarkFlagRequired("token")
	cmd.Flags().StringVarP(&srv.TokenExpire, "token-expire", "", "", "token expiry date")
	_ = cmd.MarkFlagRequired("token-expire")
	cmd.Flags().IntVarP(&srv.TokenValidityDays, "token-validity-days", "", 0, "token validity in days")
	_ = cmd.MarkFlagRequired("token-validity-days")
	cmd.Flags().StringVarP(&srv.Assignee, "assignee", "a", config.DefaultAssignee, "assignee to filter uploads by")

	return cmd
}

