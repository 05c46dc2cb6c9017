package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

// Notification types the import waits for.
const NotificationBOMComputed = "VERSION_BOM_CODE_LOCATION_BOM_COMPUTED"

type CodeLocation struct {
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Meta      Meta   `json:"_meta"`
}

// ScanSummary is a code location scan, as returned by the latest-scan and
// scans links.
type ScanSummary struct {
	ScanState     string `json:"scanState"`
	ScanType      string `json:"scanType"`
	StatusMessage string `json:"statusMessage"`
	MatchCount    int    `json:"matchCount"`
	Meta          Meta   `json:"_meta"`
}

type BOMStatus struct {
	Status string `json:"status"`
}

type NotificationContent struct {
	ProjectVersion string `json:"projectVersion"`
	CodeLocation   string `json:"codeLocation"`
	ScanSummary    string `json:"scanSummary"`
}

type Notification struct {
	Type      string              `json:"type"`
	CreatedAt string              `json:"createdAt"`
	Content   NotificationContent `json:"content"`
}

type ImportEvent struct {
	Event                      string `json:"event"`
	ImportComponentName        string `json:"importComponentName"`
	ImportComponentVersionName string `json:"importComponentVersionName"`
	ExternalID                 string `json:"externalId"`
	FailureReason              string `json:"failureReason"`
}

// UploadScan sends an SBOM document to be mapped to project and version.
func (c *Client) UploadScan(ctx context.Context, path, mimeType, project, version string) error {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to open sbom")

		return fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}
	defer f.Close()

	resp, err := c.request(ctx).
		SetMultipartField("file", filepath.Base(path), mimeType, f).
		SetMultipartFormData(map[string]string{
			"projectName": project,
			"versionName": version,
		}).
		Post("/api/scan/data")
	if err == nil && resp.StatusCode() == http.StatusConflict {
		err = fmt.Errorf("%w: %s is already mapped to a different project version", errors.ErrConfig, path)
		log.Error().Err(err).Str("path", path).Msg("unable to upload sbom")

		return err
	}

	if err := check(resp, err, "upload sbom"); err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to upload sbom")

		return err
	}

	log.Info().Str("path", path).Str("project", project).Str("version", version).
		Str("mime", mimeType).Msg("sbom uploaded")

	return nil
}

// CodeLocations searches code locations by name, latest update first, so
// the bounded search keeps the most recent uploads.
func (c *Client) CodeLocations(ctx context.Context, name string) ([]CodeLocation, error) {
	return getItems[CodeLocation](ctx, c, "/api/codelocations",
		query{params: search("name", name, "sort", "updatedAt DESC"), max: c.maxResults})
}

// VersionCodeLocations lists the code locations mapped to a project version.
func (c *Client) VersionCodeLocations(ctx context.Context, version ProjectVersion) ([]CodeLocation, error) {
	href, err := version.Meta.LinkOf("codelocations")
	if err != nil {
		return nil, err
	}

	return getItems[CodeLocation](ctx, c, href, query{})
}

func (c *Client) Scans(ctx context.Context, cl CodeLocation) ([]ScanSummary, error) {
	href, err := cl.Meta.LinkOf("scans")
	if err != nil {
		return nil, err
	}

	return getItems[ScanSummary](ctx, c, href, query{})
}

func (c *Client) LatestScan(ctx context.Context, href string) (*ScanSummary, error) {
	return getJSON[ScanSummary](ctx, c, href, "")
}

// BOMStatus reads the aggregate BOM computation status of a project version.
func (c *Client) BOMStatus(ctx context.Context, versionURL string) (*BOMStatus, error) {
	return getJSON[BOMStatus](ctx, c, versionURL+"/bom-status", "")
}

// Notifications lists the most recent notifications of one type, newest first.
func (c *Client) Notifications(ctx context.Context, notificationType string) ([]Notification, error) {
	params := url.Values{
		"filter": []string{"notificationType:" + notificationType},
		"sort":   []string{"createdAt DESC"},
	}

	return getItems[Notification](ctx, c, "/api/notifications", query{params: params, max: c.maxResults})
}

func (c *Client) ImportEvents(ctx context.Context, scan ScanSummary) ([]ImportEvent, error) {
	href, err := scan.Meta.LinkOf("component-import-events")
	if err != nil {
		return nil, err
	}

	return getItems[ImportEvent](ctx, c, href, query{})
}
