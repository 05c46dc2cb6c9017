// Package reconcile matches SBOM packages against the components of a hub
// project version and creates custom components for the ones nobody knows.
package reconcile

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/package-url/packageurl-go"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/bom"
)

type Kind string

const (
	KindKnowledgeBase Kind = "KnowledgeBase"
	KindCustom        Kind = "Custom"
)

// Match is a catalog component (and possibly version) equivalent to a package.
// An empty VersionURL means the component exists but the version does not.
type Match struct {
	ComponentName    string
	ComponentVersion string
	Kind             Kind
	ComponentURL     string
	VersionURL       string
}

// BOMEntry is one result of a BOM search. Version may be empty when the hub
// returned a component without a version name.
type BOMEntry struct {
	Name    string
	Version string
}

// CatalogEntry is one result of a custom component search.
type CatalogEntry struct {
	Name string
	URL  string
}

// CatalogVersion is one version of a custom component.
type CatalogVersion struct {
	Version string
	URL     string
}

// KnowledgeBase resolves package identifiers to known components.
type KnowledgeBase interface {
	// LookupByIdentifier returns nil, nil when the identifier is unknown.
	LookupByIdentifier(ctx context.Context, id string) (*Match, error)
}

// BOM is the component list of one project version.
type BOM interface {
	// SearchBOM is imprecise, results are filtered by the caller.
	SearchBOM(ctx context.Context, name string) ([]BOMEntry, error)
	AddToBOM(ctx context.Context, versionURL string) error
}

// CustomCatalog holds locally defined components.
type CustomCatalog interface {
	SearchCustomCatalog(ctx context.Context, name string) ([]CatalogEntry, error)
	ListVersions(ctx context.Context, componentURL string) ([]CatalogVersion, error)
	CreateComponent(ctx context.Context, name, version, licenseURL string) (string, error)
	CreateVersion(ctx context.Context, componentURL, version, licenseURL string) (string, error)
	// ResolveLicense returns errors.ErrNotFound when no license has exactly this name.
	ResolveLicense(ctx context.Context, name string) (string, error)
}

type Reconciler struct {
	kb      KnowledgeBase
	bom     BOM
	catalog CustomCatalog
	license string

	licenseURL string
}

// New returns a reconciler creating custom components under the named license.
func New(kb KnowledgeBase, b BOM, catalog CustomCatalog, license string) *Reconciler {
	return &Reconciler{
		kb:      kb,
		bom:     b,
		catalog: catalog,
		license: license,
	}
}

// Reconcile makes sure the package is part of the BOM, creating a custom
// component or version when neither the knowledge base nor the custom
// catalog has it.
func (r *Reconciler) Reconcile(ctx context.Context, pkg bom.Package) (Outcome, error) {
	outcome, _, err := r.reconcile(ctx, pkg)

	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, pkg bom.Package) (Outcome, *Match, error) {
	matchName, matchVersion := pkg.Name, pkg.Version

	known, err := r.lookup(ctx, pkg)
	if err != nil {
		return nil, nil, err
	}

	if known != nil {
		log.Debug().Str("package", pkg.Name).Str("version", pkg.Version).
			Str("component", known.ComponentName).Str("component_version", known.ComponentVersion).
			Msg("knowledge base match")

		matchName, matchVersion = known.ComponentName, known.ComponentVersion
	}

	found, err := r.inBOM(ctx, matchName, matchVersion)
	if err != nil {
		return nil, known, err
	}

	if found {
		return AlreadyInBOM{Name: matchName, Version: matchVersion}, known, nil
	}

	if known != nil {
		log.Warn().Str("component", matchName).Str("version", matchVersion).
			Msg("component is in the knowledge base but not in the bom, adding it")

		if err := r.bom.AddToBOM(ctx, known.VersionURL); err != nil {
			return nil, known, err
		}

		return AddedKnownComponent{Match: *known}, known, nil
	}

	outcome, versionURL, err := r.custom(ctx, pkg)
	if err != nil {
		return nil, nil, err
	}

	log.Info().Str("package", pkg.Name).Str("version", pkg.Version).Msg("adding custom component to bom")

	if err := r.bom.AddToBOM(ctx, versionURL); err != nil {
		return nil, nil, err
	}

	return outcome, nil, nil
}

func (r *Reconciler) lookup(ctx context.Context, pkg bom.Package) (*Match, error) {
	if !pkg.HasExternalID() {
		return nil, nil
	}

	if _, err := packageurl.FromString(pkg.ExternalID); err != nil {
		log.Warn().Err(err).Str("package", pkg.Name).Str("purl", pkg.ExternalID).
			Msg("invalid package url, skipping knowledge base lookup")

		return nil, nil
	}

	match, err := r.kb.LookupByIdentifier(ctx, pkg.ExternalID)
	if err != nil {
		log.Error().Err(err).Str("purl", pkg.ExternalID).Msg("unable to look up package url")

		return nil, err
	}

	if match != nil && (match.ComponentName == "" || match.VersionURL == "") {
		log.Warn().Str("purl", pkg.ExternalID).Msg("incomplete knowledge base match, ignoring it")

		return nil, nil
	}

	return match, nil
}

func (r *Reconciler) inBOM(ctx context.Context, name, version string) (bool, error) {
	entries, err := r.bom.SearchBOM(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("component", name).Msg("unable to search bom")

		return false, err
	}

	for _, entry := range entries {
		// the hub search is a substring search
		if !strings.EqualFold(entry.Name, name) {
			continue
		}

		if version == bom.UnknownVersion {
			return true, nil
		}

		if entry.Version == "" {
			log.Warn().Str("component", entry.Name).Msg("bom component has no version")

			continue
		}

		if strings.EqualFold(entry.Version, version) {
			return true, nil
		}
	}

	return false, nil
}

// custom finds or creates the custom component version for the package's
// declared name and version.
func (r *Reconciler) custom(ctx context.Context, pkg bom.Package) (Outcome, string, error) {
	entries, err := r.catalog.SearchCustomCatalog(ctx, pkg.Name)
	if err != nil {
		log.Error().Err(err).Str("component", pkg.Name).Msg("unable to search custom components")

		return nil, "", err
	}

	var component *CatalogEntry

	for i := range entries {
		if entries[i].URL == "" {
			log.Warn().Str("component", entries[i].Name).Msg("custom component has no url")

			continue
		}

		if strings.EqualFold(entries[i].Name, pkg.Name) {
			component = &entries[i]

			break
		}
	}

	name, version := strings.ToLower(pkg.Name), strings.ToLower(pkg.Version)

	if component == nil {
		licenseURL, err := r.resolveLicense(ctx)
		if err != nil {
			return nil, "", err
		}

		log.Info().Str("component", name).Str("version", version).Msg("creating custom component")

		versionURL, err := r.catalog.CreateComponent(ctx, name, version, licenseURL)
		if err != nil {
			log.Error().Err(err).Str("component", name).Msg("unable to create custom component")

			return nil, "", err
		}

		return CreatedComponentAndVersion{Name: name, Version: version, VersionURL: versionURL}, versionURL, nil
	}

	versions, err := r.catalog.ListVersions(ctx, component.URL)
	if err != nil {
		log.Error().Err(err).Str("component", component.Name).Msg("unable to list custom component versions")

		return nil, "", err
	}

	for _, v := range versions {
		if v.URL == "" {
			log.Warn().Str("component", component.Name).Str("version", v.Version).Msg("custom version has no url")

			continue
		}

		if strings.EqualFold(v.Version, pkg.Version) {
			return CustomAlreadyExists{Name: component.Name, Version: v.Version, VersionURL: v.URL}, v.URL, nil
		}
	}

	licenseURL, err := r.resolveLicense(ctx)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("component", component.Name).Str("version", version).Msg("creating custom component version")

	versionURL, err := r.catalog.CreateVersion(ctx, component.URL, version, licenseURL)
	if err != nil {
		log.Error().Err(err).Str("component", component.Name).Str("version", version).
			Msg("unable to create custom component version")

		return nil, "", err
	}

	return CreatedVersion{Name: component.Name, Version: version, VersionURL: versionURL}, versionURL, nil
}

func (r *Reconciler) resolveLicense(ctx context.Context) (string, error) {
	if r.licenseURL != "" {
		return r.licenseURL, nil
	}

	url, err := r.catalog.ResolveLicense(ctx, r.license)
	if err != nil {
		log.Error().Err(err).Str("license", r.license).Msg("unable to resolve license")

		if stderrors.Is(err, errors.ErrNotFound) {
			return "", fmt.Errorf("%w: license %q: %w", errors.ErrConfig, r.license, err)
		}

		return "", err
	}

	r.licenseURL = url

	return url, nil
}

// Run reconciles every package in order and stops at the first error. The
// summary covers the packages handled so far.
func (r *Reconciler) Run(ctx context.Context, pkgs []bom.Package) (*Summary, error) {
	summary := NewSummary()

	for _, pkg := range pkgs {
		summary.seen(pkg)

		if pkg.Internal {
			log.Info().Str("package", pkg.Name).Str("version", pkg.Version).Msg("skipping hub project version")

			summary.Skipped++

			continue
		}

		log.Info().Str("package", pkg.Name).Str("version", pkg.Version).Msg("processing package")

		outcome, known, err := r.reconcile(ctx, pkg)
		if err != nil {
			return summary, fmt.Errorf("%s %s: %w", pkg.Name, pkg.Version, err)
		}

		summary.record(pkg, outcome, known != nil)

		log.Info().Str("package", pkg.Name).Str("version", pkg.Version).Str("outcome", outcome.String()).Msg("reconciled")
	}

	return summary, nil
}
