package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
	"stackerbuild.io/bomsync/errors"
)

const DefaultAssignee = "-unassigned-"

// FossyServer is one section of FOSSology's config.ini.
type FossyServer struct {
	URL string
	// BearerToken is stored with its "Bearer " prefix.
	BearerToken       string
	GroupName         string
	Assignee          string
	TokenExpire       string
	TokenValidityDays int
}

// Token returns the bearer token without its scheme.
func (s FossyServer) Token() string {
	token := strings.TrimSpace(s.BearerToken)

	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}

	return token
}

// LoadFossy reads a section of a FOSSology config.ini.
func LoadFossy(path, section string) (*FossyServer, error) {
	f, err := ini.Load(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to read fossology config")

		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	sec, err := f.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: no section %q", errors.ErrConfig, path, section)
	}

	srv := &FossyServer{
		URL:               sec.Key("url").String(),
		BearerToken:       sec.Key("bearer_token").String(),
		GroupName:         sec.Key("group_name").String(),
		Assignee:          sec.Key("assignee").MustString(DefaultAssignee),
		TokenExpire:       sec.Key("token_expire").String(),
		TokenValidityDays: sec.Key("token_valdity_days").MustInt(0),
	}

	if srv.URL == "" {
		return nil, fmt.Errorf("%w: %s [%s]: url is not set", errors.ErrConfig, path, section)
	}

	return srv, nil
}

// SaveFossy sets the token, group and assignee keys of a section, keeping
// the rest of the file.
func SaveFossy(path, section string, srv FossyServer) error {
	f, err := ini.LooseLoad(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to read fossology config")

		return fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	sec := f.Section(section)

	if srv.URL != "" {
		sec.Key("url").SetValue(srv.URL)
	}

	if srv.Assignee == "" {
		srv.Assignee = DefaultAssignee
	}

	sec.Key("assignee").SetValue(srv.Assignee)
	sec.Key("bearer_token").SetValue("Bearer " + srv.Token())
	sec.Key("token_valdity_days").SetValue(fmt.Sprint(srv.TokenValidityDays))
	sec.Key("token_expire").SetValue(srv.TokenExpire)
	sec.Key("group_name").SetValue(srv.GroupName)

	if err := f.SaveTo(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to write fossology config")

		return err
	}

	log.Info().Str("path", path).Str("section", section).Msg("fossology config written")

	return nil
}
