package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/importer"
)

func UsersCmd() *cobra.Command {
	dormantDays := 0

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List hub users with their last login",
		Long:  "List hub users with their last login, or only the users dormant for some days",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, cancel := signalContext()
			defer cancel()

			if err := runUsers(ctx, dormantDays); err != nil {
				log.Error().Err(err).Msg("users failed")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().IntVarP(&dormantDays, "dormant-since", "d", 0, "only list users without login for this many days")

	return cmd
}

func runUsers(ctx context.Context, dormantDays int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := hubClient(ctx, cfg)
	if err != nil {
		return err
	}

	var logins []importer.UserLogin

	if dormantDays > 0 {
		logins, err = importer.DormantUsers(ctx, c, dormantDays)
	} else {
		logins, err = importer.UserLogins(ctx, c)
	}

	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0) //nolint:gomnd
	fmt.Fprintln(tw, "USER\tNAME\tEMAIL\tACTIVE\tLAST LOGIN")

	for _, u := range logins {
		last := u.LastLogin
		if last == "" {
			last = "never"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", u.UserName, u.FullName, u.Email, u.Active, last)
	}

	return tw.Flush()
}
