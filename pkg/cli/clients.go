package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"stackerbuild.io/bomsync/pkg/config"
	"stackerbuild.io/bomsync/pkg/fossy"
	"stackerbuild.io/bomsync/pkg/hub"
)

// loadConfig reads the config file and applies the global flags over it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return nil, err
	}

	if BaseURL != "" {
		cfg.Hub.URL = BaseURL
	}

	if TokenFile != "" {
		cfg.Hub.TokenFile = TokenFile
		cfg.Hub.Token = ""
	}

	if NoVerify {
		cfg.Hub.Insecure = true
	}

	return cfg, nil
}

// hubClient returns an authenticated hub client.
func hubClient(ctx context.Context, cfg *config.Config) (*hub.Client, error) {
	opts, err := cfg.HubOptions()
	if err != nil {
		return nil, err
	}

	c, err := hub.New(opts)
	if err != nil {
		return nil, err
	}

	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// fossyClient returns a client for a section of FOSSology's config.ini.
func fossyClient(cfg *config.Config, file, section string) (*fossy.Client, *config.FossyServer, error) {
	if file == "" {
		file = cfg.Fossy.Config
	}

	if section == "" {
		section = cfg.Fossy.Section
	}

	srv, err := config.LoadFossy(file, section)
	if err != nil {
		return nil, nil, err
	}

	fc, err := fossy.New(fossy.Options{
		URL:       srv.URL,
		Token:     srv.Token(),
		GroupName: srv.GroupName,
		Insecure:  NoVerify,
	})
	if err != nil {
		return nil, nil, err
	}

	return fc, srv, nil
}

// pollFlags binds the poll settings of a waiting command. Zero values fall
// back to the config file.
func pollFlags(cmd *cobra.Command, attempts *int, interval *time.Duration) {
	cmd.Flags().IntVarP(attempts, "max-attempts", "", 0, "polls per wait before giving up")
	cmd.Flags().DurationVarP(interval, "interval", "", 0, "delay between two polls")
}

func pollSettings(cfg *config.Config, attempts int, interval time.Duration) (int, time.Duration) {
	if attempts <= 0 {
		attempts = cfg.Poll.MaxAttempts
	}

	if interval <= 0 {
		interval = cfg.Poll.Interval
	}

	return attempts, interval
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
