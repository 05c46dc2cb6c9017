package rpm

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sassoftware/go-rpmutils"
)

// Header is the part of an rpm header bomsync reports.
type Header struct {
	Name    string
	Version string
	License string
	Vendor  string
	URL     string
}

// Inspect reads the header of an .rpm package.
func Inspect(path string) (*Header, error) {
	fhandle, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to open file")

		return nil, err
	}

	defer fhandle.Close()

	rpmfile, err := rpmutils.ReadRpm(fhandle)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to load package")

		return nil, err
	}

	nevra, err := rpmfile.Header.GetNEVRA()
	if err != nil {
		return nil, err
	}

	return &Header{
		Name:    nevra.Name,
		Version: nevra.Version + "-" + nevra.Release,
		License: first(rpmfile.Header.GetStrings(rpmutils.LICENSE)),
		Vendor:  first(rpmfile.Header.GetStrings(rpmutils.VENDOR)),
		URL:     first(rpmfile.Header.GetStrings(rpmutils.URL)),
	}, nil
}

// first joins the values of an optional header tag.
func first(values []string, err error) string {
	if err != nil {
		return ""
	}

	return strings.Join(values, " ")
}
