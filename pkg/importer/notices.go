package importer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/pkg/hub"
	"stackerbuild.io/bomsync/pkg/poll"
	"stackerbuild.io/bomsync/pkg/report"
)

// Report download states.
const (
	ReportReady      = "READY"
	ReportUnfinished = "UNFINISHED"
)

type NoticesOptions struct {
	Project string
	Version string
	// Template is a custom html/template file, the built-in one is used
	// when empty.
	Template string
	// Output is the HTML file, FOSS_Report_<project>_<version>.html by default.
	Output string
	// JSONOutput keeps the downloaded report, if set.
	JSONOutput  string
	MaxAttempts int
	Interval    time.Duration
}

// NoticesReport generates the notices report of a project version and
// renders it as HTML. It returns the path of the HTML file.
func NoticesReport(ctx context.Context, c *hub.Client, opts NoticesOptions) (string, error) {
	tmpl, err := report.LoadTemplate(opts.Template)
	if err != nil {
		return "", err
	}

	_, version, err := c.FindProjectVersion(ctx, opts.Project, opts.Version)
	if err != nil {
		return "", err
	}

	location, err := c.CreateNoticesReport(ctx, *version)
	if err != nil {
		return "", err
	}

	target := poll.Target{
		Name:        "notices report",
		Terminal:    []string{ReportReady},
		MaxAttempts: opts.MaxAttempts,
		Interval:    opts.Interval,
	}

	downloaded, err := poll.Until(ctx, target, func(ctx context.Context) (poll.Report[[]byte], error) {
		content, ready, err := c.FetchReport(ctx, location)
		if err != nil {
			return poll.Report[[]byte]{}, err
		}

		if !ready {
			return poll.Report[[]byte]{State: ReportUnfinished}, nil
		}

		return poll.Report[[]byte]{State: ReportReady, Value: content}, nil
	})
	if err != nil {
		log.Error().Err(err).Str("report", location).Msg("unable to download notices report")

		return "", err
	}

	if opts.JSONOutput != "" {
		if err := os.WriteFile(opts.JSONOutput, downloaded.Value, 0o644); err != nil { //nolint:gosec,gomnd
			log.Error().Err(err).Str("path", opts.JSONOutput).Msg("unable to write notices report")

			return "", err
		}
	}

	notices, err := report.ParseNotices(downloaded.Value)
	if err != nil {
		return "", err
	}

	output := opts.Output
	if output == "" {
		output = fmt.Sprintf("FOSS_Report_%s_%s.html", opts.Project, opts.Version)
	}

	f, err := os.Create(output)
	if err != nil {
		log.Error().Err(err).Str("path", output).Msg("unable to create notices file")

		return "", err
	}
	defer f.Close()

	if err := report.RenderNotices(f, tmpl, notices); err != nil {
		log.Error().Err(err).Str("path", output).Msg("unable to render notices")

		return "", err
	}

	log.Info().Str("path", output).Int("components", len(notices.ComponentLicenses)).Msg("notices report written")

	return output, nil
}
