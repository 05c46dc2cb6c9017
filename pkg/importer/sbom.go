// Package importer drives the bomsync workflows on top of the hub and
// FOSSology clients.
package importer

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/pkg/bom"
	"stackerbuild.io/bomsync/pkg/hub"
	"stackerbuild.io/bomsync/pkg/poll"
	"stackerbuild.io/bomsync/pkg/reconcile"
)

// Code location and scan states.
const (
	StateMissing = "MISSING"
	StateFound   = "FOUND"

	ScanSuccess = "SUCCESS"
	ScanFailure = "FAILURE"

	BOMUpToDate             = "UP_TO_DATE"
	BOMUpToDateWithErrors   = "UP_TO_DATE_WITH_ERRORS"
	BOMProcessingWithErrors = "PROCESSING_WITH_ERRORS"
)

type ImportOptions struct {
	SBOMFile string
	Project  string
	Version  string
	// License names the license of created custom components.
	License string
	// OutFile receives the unmatched packages as JSON, if set.
	OutFile string
	// MissingSBOM receives the unmatched packages as an SPDX document, if set.
	MissingSBOM string
	// Validate logs SPDX validation problems before the upload.
	Validate    bool
	MaxAttempts int
	Interval    time.Duration
}

func (o ImportOptions) target(name string, terminal, failure []string) poll.Target {
	return poll.Target{
		Name:        name,
		Terminal:    terminal,
		Failure:     failure,
		MaxAttempts: o.MaxAttempts,
		Interval:    o.Interval,
	}
}

// CodeLocationName is the name the hub gives the code location of an
// uploaded SBOM document.
func CodeLocationName(doc *bom.Document) string {
	suffix := "spdx/sbom"
	if doc.Format == bom.FormatCycloneDX {
		suffix = "cyclonedx/sbom"
	}

	return strings.ReplaceAll(doc.Name, " ", "-") + " " + suffix
}

// ImportSBOM uploads an SBOM document to a project version, waits for the
// hub to build the BOM from it and then makes sure every package of the
// document is part of that BOM.
func ImportSBOM(ctx context.Context, c *hub.Client, opts ImportOptions) (*reconcile.Summary, error) {
	doc, err := bom.OpenDoc(opts.SBOMFile)
	if err != nil {
		return nil, err
	}

	if opts.Validate {
		for _, msg := range doc.Validate() {
			log.Warn().Str("path", opts.SBOMFile).Str("problem", msg).Msg("sbom validation")
		}
	}

	if doc.Skipped > 0 {
		log.Warn().Int("count", doc.Skipped).Str("path", opts.SBOMFile).Msg("packages without a name skipped")
	}

	_, version, err := c.FindProjectVersion(ctx, opts.Project, opts.Version)
	if err != nil {
		return nil, err
	}

	if err := c.UploadScan(ctx, opts.SBOMFile, doc.Format.MIMEType(), opts.Project, opts.Version); err != nil {
		return nil, err
	}

	if err := waitForBOM(ctx, c, opts, doc, *version); err != nil {
		return nil, err
	}

	catalog := NewCatalog(c, *version)

	summary, err := reconcile.New(catalog, catalog, catalog, opts.License).Run(ctx, doc.Packages)
	if err != nil {
		return summary, err
	}

	if opts.OutFile != "" {
		if err := summary.WriteUnmatched(opts.OutFile); err != nil {
			return nil, err
		}
	}

	if opts.MissingSBOM != "" {
		target := opts.Project + " " + opts.Version
		if err := bom.WriteMissingDocument(doc.Name+"-missing", target, summary.Missing(), opts.MissingSBOM); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

// waitForBOM waits for the code location of the upload, its scan, the BOM
// computation and the notification closing the computation.
func waitForBOM(ctx context.Context, c *hub.Client, opts ImportOptions, doc *bom.Document, version hub.ProjectVersion) error {
	name := CodeLocationName(doc)

	located, err := poll.Until(ctx, opts.target("code location", []string{StateFound}, nil),
		func(ctx context.Context) (poll.Report[hub.CodeLocation], error) {
			return findCodeLocation(ctx, c, name)
		})
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("code location not found")

		return err
	}

	cl := located.Value

	latest, err := cl.Meta.LinkOf("latest-scan")
	if err != nil {
		return err
	}

	scanned, err := poll.Until(ctx, opts.target("scan state", []string{ScanSuccess}, []string{ScanFailure}),
		func(ctx context.Context) (poll.Report[hub.ScanSummary], error) {
			scan, err := c.LatestScan(ctx, latest)
			if err != nil {
				return poll.Report[hub.ScanSummary]{}, err
			}

			return poll.Report[hub.ScanSummary]{State: scan.ScanState, Detail: scan.StatusMessage, Value: *scan}, nil
		})
	if err != nil {
		log.Error().Err(err).Str("code_location", name).Msg("scan did not complete")

		return err
	}

	scan := scanned.Value

	if scan.MatchCount == 0 {
		log.Warn().Str("code_location", name).Msg("scan has no matches, not waiting for the bom")

		return nil
	}

	_, err = poll.Until(ctx,
		opts.target("bom status", []string{BOMUpToDate}, []string{BOMUpToDateWithErrors, BOMProcessingWithErrors}),
		func(ctx context.Context) (poll.Report[struct{}], error) {
			status, err := c.BOMStatus(ctx, version.Meta.Href)
			if err != nil {
				return poll.Report[struct{}]{}, err
			}

			return poll.Report[struct{}]{State: status.Status}, nil
		})
	if err != nil {
		log.Error().Err(err).Str("version", version.VersionName).Msg("bom was not computed")

		return err
	}

	want := hub.NotificationContent{
		ProjectVersion: version.Meta.Href,
		CodeLocation:   cl.Meta.Href,
		ScanSummary:    scan.Meta.Href,
	}

	_, err = poll.Until(ctx, opts.target("bom computed notification", []string{StateFound}, nil),
		func(ctx context.Context) (poll.Report[struct{}], error) {
			notifications, err := c.Notifications(ctx, hub.NotificationBOMComputed)
			if err != nil {
				return poll.Report[struct{}]{}, err
			}

			for _, n := range notifications {
				if n.Content == want {
					return poll.Report[struct{}]{State: StateFound}, nil
				}
			}

			return poll.Report[struct{}]{State: StateMissing}, nil
		})
	if err != nil {
		log.Error().Err(err).Str("code_location", name).Msg("bom computation was not notified")

		return err
	}

	log.Info().Str("code_location", name).Int("matches", scan.MatchCount).Msg("bom is up to date")

	return nil
}

func findCodeLocation(ctx context.Context, c *hub.Client, name string) (poll.Report[hub.CodeLocation], error) {
	locations, err := c.CodeLocations(ctx, name)
	if err != nil {
		return poll.Report[hub.CodeLocation]{}, err
	}

	var found []hub.CodeLocation

	for _, cl := range locations {
		if cl.Name == name {
			found = append(found, cl)
		}
	}

	if len(found) == 0 {
		return poll.Report[hub.CodeLocation]{State: StateMissing}, nil
	}

	// latest update first: the upload we just made
	if len(found) > 1 {
		log.Warn().Str("name", name).Int("count", len(found)).Msg("several code locations with this name")
	}

	return poll.Report[hub.CodeLocation]{State: StateFound, Value: found[0]}, nil
}
