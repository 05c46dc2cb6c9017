package importer

import (
	"context"

	"stackerbuild.io/bomsync/pkg/hub"
	"stackerbuild.io/bomsync/pkg/reconcile"
)

// Catalog exposes one project version of a hub to the reconciler: the
// knowledge base, the version BOM and the custom components.
type Catalog struct {
	hub        *hub.Client
	versionURL string
}

func NewCatalog(c *hub.Client, version hub.ProjectVersion) *Catalog {
	return &Catalog{hub: c, versionURL: version.Meta.Href}
}

func (c *Catalog) LookupByIdentifier(ctx context.Context, id string) (*reconcile.Match, error) {
	kb, err := c.hub.LookupPurl(ctx, id)
	if err != nil || kb == nil {
		return nil, err
	}

	return &reconcile.Match{
		ComponentName:    kb.ComponentName,
		ComponentVersion: kb.VersionName,
		Kind:             reconcile.KindKnowledgeBase,
		ComponentURL:     kb.Component,
		VersionURL:       kb.Version,
	}, nil
}

func (c *Catalog) SearchBOM(ctx context.Context, name string) ([]reconcile.BOMEntry, error) {
	components, err := c.hub.SearchBOMComponents(ctx, c.versionURL, name)
	if err != nil {
		return nil, err
	}

	entries := make([]reconcile.BOMEntry, 0, len(components))
	for _, comp := range components {
		entries = append(entries, reconcile.BOMEntry{Name: comp.ComponentName, Version: comp.ComponentVersionName})
	}

	return entries, nil
}

func (c *Catalog) AddToBOM(ctx context.Context, versionURL string) error {
	return c.hub.AddToBOM(ctx, c.versionURL, versionURL)
}

func (c *Catalog) SearchCustomCatalog(ctx context.Context, name string) ([]reconcile.CatalogEntry, error) {
	components, err := c.hub.SearchComponents(ctx, name)
	if err != nil {
		return nil, err
	}

	entries := make([]reconcile.CatalogEntry, 0, len(components))
	for _, comp := range components {
		entries = append(entries, reconcile.CatalogEntry{Name: comp.Name, URL: comp.Meta.Href})
	}

	return entries, nil
}

func (c *Catalog) ListVersions(ctx context.Context, componentURL string) ([]reconcile.CatalogVersion, error) {
	versions, err := c.hub.ComponentVersions(ctx, componentURL)
	if err != nil {
		return nil, err
	}

	out := make([]reconcile.CatalogVersion, 0, len(versions))
	for _, v := range versions {
		out = append(out, reconcile.CatalogVersion{Version: v.VersionName, URL: v.Meta.Href})
	}

	return out, nil
}

func (c *Catalog) CreateComponent(ctx context.Context, name, version, licenseURL string) (string, error) {
	return c.hub.CreateComponent(ctx, name, version, licenseURL)
}

func (c *Catalog) CreateVersion(ctx context.Context, componentURL, version, licenseURL string) (string, error) {
	return c.hub.CreateVersion(ctx, componentURL, version, licenseURL)
}

func (c *Catalog) ResolveLicense(ctx context.Context, name string) (string, error) {
	return c.hub.FindLicense(ctx, name)
}
