package deb

import (
	"github.com/rs/zerolog/log"
	"pault.ag/go/debian/deb"
)

// Control is the part of a deb control file bomsync reports.
type Control struct {
	Name       string
	Version    string
	Maintainer string
	Homepage   string
}

// Inspect reads the control file of a .deb package.
func Inspect(path string) (*Control, error) {
	debfile, _, err := deb.LoadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to load package")

		return nil, err
	}

	defer debfile.Close()

	return &Control{
		Name:       debfile.Control.Package,
		Version:    debfile.Control.Version.String(),
		Maintainer: debfile.Control.Maintainer,
		Homepage:   debfile.Control.Homepage,
	}, nil
}
