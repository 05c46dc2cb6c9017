package hub

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

// Error codes the hub answers with while a report is still being generated.
var unfinishedReportCodes = []string{ //nolint:gochecknoglobals
	"{report.main.read.unfinished.report.contents}",
	"{report.main.download.unfinished.report}",
}

type apiError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type reportRequest struct {
	ReportFormat string   `json:"reportFormat"`
	ReportType   string   `json:"reportType"`
	Categories   []string `json:"categories"`
}

// CreateNoticesReport starts a JSON notices report including copyright
// text and returns the report location.
func (c *Client) CreateNoticesReport(ctx context.Context, version ProjectVersion) (string, error) {
	href, err := version.Meta.LinkOf("licenseReports")
	if err != nil {
		return "", err
	}

	resp, err := c.request(ctx).
		SetBody(reportRequest{
			ReportFormat: "JSON",
			ReportType:   "VERSION_LICENSE",
			Categories:   []string{"COPYRIGHT_TEXT"},
		}).
		Post(href)
	if err := check(resp, err, "create notices report"); err != nil {
		log.Error().Err(err).Str("version", version.VersionName).Msg("unable to create notices report")

		return "", err
	}

	loc := resp.Header().Get("Location")
	if loc == "" {
		return "", fmt.Errorf("%w: create notices report: no location in response", errors.ErrRemote)
	}

	log.Info().Str("version", version.VersionName).Str("report", loc).Msg("notices report created")

	return loc, nil
}

// FetchReport downloads the contents of a report. ready is false while the
// hub is still generating it.
func (c *Client) FetchReport(ctx context.Context, location string) (content []byte, ready bool, err error) {
	var apiErr apiError

	resp, err := c.request(ctx).
		SetHeader("Accept", "application/json").
		SetError(&apiErr).
		Get(location + "/contents")
	// the contents of a freshly registered report may not exist yet
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		log.Debug().Str("location", location).Msg("report contents not found yet")

		return nil, false, nil
	}

	if err == nil && resp.StatusCode() == http.StatusPreconditionFailed {
		for _, code := range unfinishedReportCodes {
			if apiErr.ErrorCode == code {
				return nil, false, nil
			}
		}
	}

	if err := check(resp, err, "download report"); err != nil {
		return nil, false, err
	}

	return resp.Body(), true, nil
}
