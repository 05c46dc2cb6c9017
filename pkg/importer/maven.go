package importer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/package-url/packageurl-go"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/config"
	"stackerbuild.io/bomsync/pkg/fossy"
	"stackerbuild.io/bomsync/pkg/hub"
)

const (
	OriginMaven          = "maven"
	linkOriginCopyrights = "component-origin-copyrights"
	probeTimeout         = 30 * time.Second
)

// MavenSource is the sources jar of a maven origin.
type MavenSource struct {
	Purl     string
	FileName string
	URL      string
}

// NewMavenSource derives the sources jar of an origin with a
// group:artifact:version id, served next to the binary at originURL.
func NewMavenSource(originID, originURL string) (*MavenSource, error) {
	parts := strings.Split(originID, ":")
	if len(parts) < 3 || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: maven origin id %q", errors.ErrInvalidDoc, originID)
	}

	group, artifact, version := parts[0], parts[1], parts[2]
	file := artifact + "-" + version + "-sources.jar"

	if originURL != "" && !strings.HasSuffix(originURL, "/") {
		originURL += "/"
	}

	return &MavenSource{
		Purl:     packageurl.NewPackageURL(packageurl.TypeMaven, group, artifact, version, nil, "").ToString(),
		FileName: file,
		URL:      originURL + file,
	}, nil
}

type MavenOptions struct {
	Project  string
	Version  string
	FolderID int
	// Upload triggers a FOSSology URL upload for each reachable sources jar.
	Upload bool
	// UpdateCopyright pushes the FOSSology copyrights to the hub origin.
	UpdateCopyright bool
	Pause           time.Duration
}

// MavenOverview buckets BOM components by what happened to their sources.
type MavenOverview struct {
	Total    int
	NotFound []string
	Bad      []string
	Good     []string
	Ignored  []string
	NotMaven []string
	Findings map[string][]Findings
}

// MavenToFossy sends the sources jars of the maven components of a BOM to
// FOSSology and optionally copies the copyrights FOSSology found back to the
// hub.
func MavenToFossy(ctx context.Context, c *hub.Client, fc *fossy.Client, opts MavenOptions) (*MavenOverview, error) {
	_, version, err := c.FindProjectVersion(ctx, opts.Project, opts.Version)
	if err != nil {
		return nil, err
	}

	components, err := c.BOMComponents(ctx, version.Meta.Href)
	if err != nil {
		return nil, err
	}

	probe := resty.New().SetTimeout(probeTimeout).SetDoNotParseResponse(true)
	overview := &MavenOverview{Total: len(components), Findings: map[string][]Findings{}}

	for _, comp := range components {
		key := comp.Key()

		if comp.Ignored {
			overview.Ignored = append(overview.Ignored, key)

			continue
		}

		detail, err := mavenOrigin(ctx, c, comp)
		if err != nil {
			return overview, err
		}

		if detail == nil {
			overview.NotMaven = append(overview.NotMaven, key)

			continue
		}

		src, err := NewMavenSource(detail.OriginID, detail.OriginURL)
		if err != nil {
			log.Warn().Err(err).Str("component", key).Msg("unusable maven origin")
			overview.Bad = append(overview.Bad, key)

			continue
		}

		status, err := probeURL(ctx, probe, src.URL)

		switch {
		case err != nil:
			log.Warn().Err(err).Str("component", key).Str("url", src.URL).Msg("sources not downloadable")
			overview.Bad = append(overview.Bad, key)

			continue
		case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
			log.Warn().Int("status", status).Str("component", key).Str("url", src.URL).Msg("sources not found")
			overview.NotFound = append(overview.NotFound, key)

			continue
		}

		overview.Good = append(overview.Good, key)

		findings, err := mavenFindings(ctx, c, fc, opts, *detail, src)
		if err != nil {
			return overview, err
		}

		overview.Findings[key] = findings
	}

	return overview, nil
}

// mavenOrigin returns the first maven origin of a component, nil when it
// has none.
func mavenOrigin(ctx context.Context, c *hub.Client, comp hub.BOMComponent) (*hub.OriginDetail, error) {
	for _, origin := range comp.Origins {
		detail, err := c.OriginDetail(ctx, origin)
		if err != nil {
			return nil, err
		}

		if detail.OriginName == OriginMaven {
			return detail, nil
		}
	}

	return nil, nil
}

func probeURL(ctx context.Context, rc *resty.Client, rawURL string) (int, error) {
	resp, err := rc.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return 0, err
	}
	defer resp.RawBody().Close()

	return resp.StatusCode(), nil
}

func mavenFindings(ctx context.Context, c *hub.Client, fc *fossy.Client, opts MavenOptions,
	detail hub.OriginDetail, src *MavenSource,
) ([]Findings, error) {
	if opts.Upload {
		download := strings.Replace(src.URL, "http:", "https:", 1)

		log.Info().Str("purl", src.Purl).Str("url", download).Msg("triggering upload")

		id, err := fc.UploadURL(ctx, opts.FolderID, download, src.FileName)
		if err != nil {
			return nil, err
		}

		if _, err := fc.Schedule(ctx, opts.FolderID, id); err != nil {
			return nil, err
		}

		if err := pause(ctx, opts.Pause); err != nil {
			return nil, err
		}
	}

	findings, err := FolderFindings(ctx, fc, opts.FolderID, config.DefaultAssignee, src.FileName)
	if err != nil {
		return nil, err
	}

	if !opts.UpdateCopyright {
		return findings, nil
	}

	href := detail.Meta.Link(linkOriginCopyrights)
	if href == "" {
		log.Warn().Str("purl", src.Purl).Msg("origin has no copyright link")

		return findings, nil
	}

	for _, f := range findings {
		if err := c.UpdateOriginCopyright(ctx, href, f.Copyrights); err != nil {
			return findings, err
		}

		log.Info().Str("purl", src.Purl).Int("upload", f.Upload.ID).Msg("copyright updated")
	}

	return findings, nil
}
