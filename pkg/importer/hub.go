package importer

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/pkg/hub"
	"stackerbuild.io/bomsync/pkg/report"
)

// VersionNames lists the version names of a project.
func VersionNames(ctx context.Context, c *hub.Client, project string) ([]string, error) {
	p, err := c.FindProject(ctx, project)
	if err != nil {
		return nil, err
	}

	versions, err := c.Versions(ctx, *p, "")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.VersionName)
	}

	return names, nil
}

// ExportVulnerabilities writes the vulnerabilities of a project version as
// CSV, optionally restricted to one component, and returns the row count.
func ExportVulnerabilities(ctx context.Context, c *hub.Client, w io.Writer, project, version, component string) (int, error) {
	_, v, err := c.FindProjectVersion(ctx, project, version)
	if err != nil {
		return 0, err
	}

	comps, err := c.VulnerableComponents(ctx, *v)
	if err != nil {
		return 0, err
	}

	return report.WriteVulnerabilities(w, comps, component)
}

// UserLogin is a user with its last login time, empty when unknown.
type UserLogin struct {
	UserName  string
	FullName  string
	Email     string
	Active    bool
	LastLogin string
}

// UserLogins lists every user with the last login time. Users without login
// information come last.
func UserLogins(ctx context.Context, c *hub.Client) ([]UserLogin, error) {
	users, err := c.Users(ctx)
	if err != nil {
		return nil, err
	}

	logins := make([]UserLogin, 0, len(users))

	for _, u := range users {
		last, err := c.LastLogin(ctx, u)
		if err != nil {
			log.Warn().Err(err).Str("user", u.UserName).Msg("unable to read last login")
		}

		logins = append(logins, UserLogin{
			UserName:  u.UserName,
			FullName:  strings.TrimSpace(u.FirstName + " " + u.LastName),
			Email:     u.Email,
			Active:    u.Active,
			LastLogin: last,
		})
	}

	sort.SliceStable(logins, func(i, j int) bool {
		return logins[i].LastLogin != "" && logins[j].LastLogin == ""
	})

	return logins, nil
}

// DormantUsers lists users without login for days, oldest login first.
// Users without login information come last.
func DormantUsers(ctx context.Context, c *hub.Client, days int) ([]UserLogin, error) {
	dormant, err := c.DormantUsers(ctx, days)
	if err != nil {
		return nil, err
	}

	logins := make([]UserLogin, 0, len(dormant))
	for _, u := range dormant {
		logins = append(logins, UserLogin{UserName: u.UserName, LastLogin: u.LastLogin})
	}

	sort.SliceStable(logins, func(i, j int) bool {
		return logins[i].LastLogin != "" && logins[j].LastLogin == ""
	})

	return logins, nil
}

// Import event reported for components the hub could not map.
const EventMappingFailed = "COMPONENT_MAPPING_FAILED"

// MissedImports are the external ids of components a bdio scan could not
// map, split by whether they belong to the company.
type MissedImports struct {
	Company []string
	Other   []string
}

func (m MissedImports) Total() int {
	return len(m.Company) + len(m.Other)
}

// FindMissedImports walks the bdio code locations of a project version and
// collects the failed component mappings of their scans.
func FindMissedImports(ctx context.Context, c *hub.Client, project, version, company string) (*MissedImports, error) {
	_, v, err := c.FindProjectVersion(ctx, project, version)
	if err != nil {
		return nil, err
	}

	locations, err := c.VersionCodeLocations(ctx, *v)
	if err != nil {
		return nil, err
	}

	companyIDs := map[string]bool{}
	otherIDs := map[string]bool{}

	for _, cl := range locations {
		if !strings.Contains(cl.Name, "bdio") {
			continue
		}

		scans, err := c.Scans(ctx, cl)
		if err != nil {
			return nil, err
		}

		for _, scan := range scans {
			events, err := c.ImportEvents(ctx, scan)
			if err != nil {
				return nil, err
			}

			failed := 0

			for _, ev := range events {
				if ev.Event != EventMappingFailed {
					continue
				}

				failed++

				log.Debug().Str("external_id", ev.ExternalID).Str("name", ev.ImportComponentName).
					Str("version", ev.ImportComponentVersionName).Str("reason", ev.FailureReason).Msg("mapping failed")

				if strings.Contains(ev.ExternalID, company) {
					companyIDs[ev.ExternalID] = true
				} else {
					otherIDs[ev.ExternalID] = true
				}
			}

			if failed > 0 {
				log.Info().Str("code_location", cl.Name).Int("matches", scan.MatchCount).
					Int("missing", failed).Msg("scan has unmapped components")
			}
		}
	}

	return &MissedImports{Company: sortedKeys(companyIDs), Other: sortedKeys(otherIDs)}, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
