package hub

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

type Project struct {
	Name string `json:"name"`
	Meta Meta   `json:"_meta"`
}

type ProjectVersion struct {
	VersionName  string `json:"versionName"`
	Phase        string `json:"phase"`
	Distribution string `json:"distribution"`
	Meta         Meta   `json:"_meta"`
}

// Projects returns the projects whose name exactly matches name.
func (c *Client) Projects(ctx context.Context, name string) ([]Project, error) {
	all, err := getItems[Project](ctx, c, "/api/projects", query{params: search("name", name)})
	if err != nil {
		return nil, err
	}

	projects := []Project{}

	for _, p := range all {
		if p.Name == name {
			projects = append(projects, p)
		}
	}

	return projects, nil
}

// Versions lists the versions of a project. With a non-empty name only
// exact matches are returned.
func (c *Client) Versions(ctx context.Context, project Project, name string) ([]ProjectVersion, error) {
	href, err := project.Meta.LinkOf("versions")
	if err != nil {
		return nil, err
	}

	q := query{}
	if name != "" {
		q.params = search("versionName", name)
	}

	all, err := getItems[ProjectVersion](ctx, c, href, q)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return all, nil
	}

	versions := []ProjectVersion{}

	for _, v := range all {
		if v.VersionName == name {
			versions = append(versions, v)
		}
	}

	return versions, nil
}

// FindProject returns the only project named name.
func (c *Client) FindProject(ctx context.Context, name string) (*Project, error) {
	projects, err := c.Projects(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := exactlyOne(len(projects), "project", name); err != nil {
		log.Error().Err(err).Str("project", name).Msg("unable to find project")

		return nil, err
	}

	return &projects[0], nil
}

// FindProjectVersion returns the only version named version of the only
// project named project.
func (c *Client) FindProjectVersion(ctx context.Context, project, version string) (*Project, *ProjectVersion, error) {
	p, err := c.FindProject(ctx, project)
	if err != nil {
		return nil, nil, err
	}

	versions, err := c.Versions(ctx, *p, version)
	if err != nil {
		return nil, nil, err
	}

	if err := exactlyOne(len(versions), "version", version); err != nil {
		log.Error().Err(err).Str("project", project).Str("version", version).Msg("unable to find project version")

		return nil, nil, err
	}

	log.Debug().Str("project", p.Name).Str("version", versions[0].VersionName).
		Str("url", versions[0].Meta.Href).Msg("found project version")

	return p, &versions[0], nil
}

func exactlyOne(n int, kind, name string) error {
	switch {
	case n == 0:
		return fmt.Errorf("%w: %w: %s %q", errors.ErrConfig, errors.ErrNotFound, kind, name)
	case n > 1:
		return fmt.Errorf("%w: %w: %d %ss named %q", errors.ErrConfig, errors.ErrAmbiguous, n, kind, name)
	default:
		return nil
	}
}
