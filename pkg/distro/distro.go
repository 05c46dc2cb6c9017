// Package distro reads the metadata of distribution packages, used to
// describe uploads.
package distro

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/distro/deb"
	"stackerbuild.io/bomsync/pkg/distro/rpm"
)

const (
	MIMEDeb = "application/vnd.debian.binary-package"
	MIMERPM = "application/x-rpm"
)

// Info is what a package says about itself.
type Info struct {
	Name       string
	Version    string
	License    string
	Maintainer string
	URL        string
}

// Description is a one-line summary of the package.
func (i Info) Description() string {
	parts := []string{i.Name + " " + i.Version}

	if i.License != "" {
		parts = append(parts, "license: "+i.License)
	}

	if i.Maintainer != "" {
		parts = append(parts, "maintainer: "+i.Maintainer)
	}

	if i.URL != "" {
		parts = append(parts, i.URL)
	}

	return strings.Join(parts, ", ")
}

// Inspect reads the metadata of a deb or rpm package. mtype is the sniffed
// MIME type, it is detected when empty.
func Inspect(path, mtype string) (*Info, error) {
	if mtype == "" {
		detected, err := mimetype.DetectFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to detect mime-type")

			return nil, err
		}

		mtype = detected.String()
	}

	switch mtype {
	case MIMEDeb:
		ctl, err := deb.Inspect(path)
		if err != nil {
			return nil, err
		}

		return &Info{Name: ctl.Name, Version: ctl.Version, Maintainer: ctl.Maintainer, URL: ctl.Homepage}, nil
	case MIMERPM:
		hdr, err := rpm.Inspect(path)
		if err != nil {
			return nil, err
		}

		return &Info{Name: hdr.Name, Version: hdr.Version, License: hdr.License, Maintainer: hdr.Vendor, URL: hdr.URL}, nil
	default:
		return nil, fmt.Errorf("%w: mime-type %s", errors.ErrUnsupported, mtype)
	}
}

// Describe returns the package description of path, or fallback when the
// file is not a package bomsync can read.
func Describe(path, mtype, fallback string) string {
	info, err := Inspect(path, mtype)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("no package metadata")

		return fallback
	}

	return info.Description()
}
