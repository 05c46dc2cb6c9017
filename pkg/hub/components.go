package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

// KBComponent is a knowledge base match for a package URL.
type KBComponent struct {
	ComponentName string `json:"componentName"`
	VersionName   string `json:"versionName"`
	Component     string `json:"component"`
	Version       string `json:"version"`
}

type BOMOrigin struct {
	Name              string `json:"name"`
	ExternalNamespace string `json:"externalNamespace"`
	ExternalID        string `json:"externalId"`
	Origin            string `json:"origin"`
	Meta              Meta   `json:"_meta"`
}

// BOMComponent is one component of a project version BOM.
type BOMComponent struct {
	ComponentName        string      `json:"componentName"`
	ComponentVersionName string      `json:"componentVersionName"`
	Component            string      `json:"component"`
	ComponentVersion     string      `json:"componentVersion"`
	Ignored              bool        `json:"ignored"`
	Origins              []BOMOrigin `json:"origins"`
	Meta                 Meta        `json:"_meta"`
}

// Key names the component the way reports do: name[:version].
func (b BOMComponent) Key() string {
	if b.ComponentVersionName == "" {
		return b.ComponentName
	}

	return b.ComponentName + ":" + b.ComponentVersionName
}

// OriginDetail is the component version origin a BOM origin points to.
type OriginDetail struct {
	OriginName string `json:"originName"`
	OriginID   string `json:"originId"`
	OriginURL  string `json:"originUrl"`
	Meta       Meta   `json:"_meta"`
}

type Component struct {
	Name string `json:"name"`
	Meta Meta   `json:"_meta"`
}

type ComponentVersion struct {
	VersionName string `json:"versionName"`
	Meta        Meta   `json:"_meta"`
}

type License struct {
	Name string `json:"name"`
	Meta Meta   `json:"_meta"`
}

// LookupPurl asks the knowledge base about a package URL. It returns nil
// when the package is unknown.
func (c *Client) LookupPurl(ctx context.Context, purl string) (*KBComponent, error) {
	matches, err := getItems[KBComponent](ctx, c, "/api/search/kb-purl-component",
		query{params: url.Values{"purl": []string{purl}}})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, nil
	}

	return &matches[0], nil
}

// SearchBOMComponents runs the BOM search of a project version. The search
// matches substrings of component and version names.
func (c *Client) SearchBOMComponents(ctx context.Context, versionURL, name string) ([]BOMComponent, error) {
	return getItems[BOMComponent](ctx, c, versionURL+"/components",
		query{params: search("componentOrVersionName", name), max: c.maxResults})
}

// BOMComponents lists every component of a project version BOM.
func (c *Client) BOMComponents(ctx context.Context, versionURL string) ([]BOMComponent, error) {
	return getItems[BOMComponent](ctx, c, versionURL+"/components", query{})
}

// AddToBOM adds a component version to a project version BOM.
func (c *Client) AddToBOM(ctx context.Context, versionURL, componentVersionURL string) error {
	resp, err := c.request(ctx).
		SetBody(map[string]string{"component": componentVersionURL}).
		Post(versionURL + "/components")
	if err := check(resp, err, "add to bom"); err != nil {
		log.Error().Err(err).Str("component", componentVersionURL).Msg("unable to add component to bom")

		return err
	}

	return nil
}

// SearchComponents searches components by name. It relies on the internal
// media type, which also returns custom components.
func (c *Client) SearchComponents(ctx context.Context, name string) ([]Component, error) {
	return getItems[Component](ctx, c, "/api/components",
		query{params: search("name", name), accept: AcceptInternal, max: c.maxResults})
}

func (c *Client) ComponentVersions(ctx context.Context, componentURL string) ([]ComponentVersion, error) {
	return getItems[ComponentVersion](ctx, c, componentURL+"/versions", query{})
}

// FindLicense returns the url of the license named exactly name.
func (c *Client) FindLicense(ctx context.Context, name string) (string, error) {
	licenses, err := getItems[License](ctx, c, "/api/licenses",
		query{params: search("name", name), max: c.maxResults})
	if err != nil {
		return "", err
	}

	// "NOASSERTION" also finds "NOASSERTION2"
	for _, l := range licenses {
		if l.Name == name {
			return l.Meta.Href, nil
		}
	}

	return "", fmt.Errorf("%w: license %q", errors.ErrNotFound, name)
}

type licenseRef struct {
	License string `json:"license"`
}

type versionRequest struct {
	VersionName string     `json:"versionName"`
	License     licenseRef `json:"license"`
}

type componentRequest struct {
	Name    string         `json:"name"`
	Version versionRequest `json:"version"`
}

// CreateComponent creates a custom component with one version and returns
// the version url.
func (c *Client) CreateComponent(ctx context.Context, name, version, licenseURL string) (string, error) {
	resp, err := c.request(ctx).
		SetBody(componentRequest{
			Name: name,
			Version: versionRequest{
				VersionName: version,
				License:     licenseRef{License: licenseURL},
			},
		}).
		Post("/api/components")
	if err := check(resp, err, "create component"); err != nil {
		return "", err
	}

	versionsURL := linkHeader(resp.Header().Values("Link"), "versions")
	if versionsURL == "" {
		componentURL := resp.Header().Get("Location")
		if componentURL == "" {
			return "", fmt.Errorf("%w: create component %s: no location in response", errors.ErrRemote, name)
		}

		versionsURL = componentURL + "/versions"
	}

	versions, err := getItems[ComponentVersion](ctx, c, versionsURL, query{})
	if err != nil {
		return "", err
	}

	// the component was just created with exactly one version
	if len(versions) == 0 {
		return "", fmt.Errorf("%w: create component %s: no version", errors.ErrRemote, name)
	}

	return versions[0].Meta.Href, nil
}

// CreateVersion adds a version to an existing custom component and returns
// the version url.
func (c *Client) CreateVersion(ctx context.Context, componentURL, version, licenseURL string) (string, error) {
	resp, err := c.request(ctx).
		SetBody(versionRequest{VersionName: version, License: licenseRef{License: licenseURL}}).
		Post(componentURL + "/versions")
	if err == nil && resp.StatusCode() == http.StatusPreconditionFailed {
		return "", fmt.Errorf("%w: version %s already exists for %s", errors.ErrRemote, version, componentURL)
	}

	if err := check(resp, err, "create version"); err != nil {
		return "", err
	}

	href := location(resp, "self")
	if href == "" {
		return "", fmt.Errorf("%w: create version %s: no location in response", errors.ErrRemote, version)
	}

	return href, nil
}

// OriginDetail follows the origin link of a BOM component origin.
func (c *Client) OriginDetail(ctx context.Context, origin BOMOrigin) (*OriginDetail, error) {
	href := origin.Meta.Link("origin")
	if href == "" {
		href = origin.Origin
	}

	if href == "" {
		return nil, fmt.Errorf("%w: origin %s has no origin link", errors.ErrIncomplete, origin.Name)
	}

	return getJSON[OriginDetail](ctx, c, href, "")
}

type copyrightUpdate struct {
	Copyright string `json:"copyright"`
}

// UpdateOriginCopyright posts copyright text to a component-origin-copyrights link.
func (c *Client) UpdateOriginCopyright(ctx context.Context, href, text string) error {
	resp, err := c.request(ctx).
		SetHeader("Accept", AcceptCopyright).
		SetHeader("Content-Type", AcceptCopyright).
		SetBody(copyrightUpdate{Copyright: text}).
		Post(href)
	if err := check(resp, err, "update copyright"); err != nil {
		log.Error().Err(err).Str("url", href).Msg("unable to update copyright")

		return err
	}

	return nil
}

type Remediation struct {
	VulnerabilityName  string `json:"vulnerabilityName"`
	RemediationStatus  string `json:"remediationStatus"`
	RemediationComment string `json:"remediationComment"`
	Description        string `json:"description"`
}

type VulnerableComponent struct {
	ComponentName        string      `json:"componentName"`
	ComponentVersionName string      `json:"componentVersionName"`
	Vulnerability        Remediation `json:"vulnerabilityWithRemediation"`
}

func (c *Client) VulnerableComponents(ctx context.Context, version ProjectVersion) ([]VulnerableComponent, error) {
	href, err := version.Meta.LinkOf("vulnerable-components")
	if err != nil {
		return nil, err
	}

	return getItems[VulnerableComponent](ctx, c, href, query{})
}
