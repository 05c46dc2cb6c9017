// Package report renders hub data for humans: notices as HTML and
// vulnerabilities as CSV.
package report

import (
	"bufio"
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/errors"
)

//go:embed templates/notices.html
var defaultNotices string //nolint:gochecknoglobals

type ComponentRef struct {
	ProjectName string `json:"projectName"`
	VersionName string `json:"versionName"`
}

type LicenseRef struct {
	Name string `json:"name"`
}

type ComponentLicense struct {
	Component ComponentRef `json:"component"`
	Licenses  []LicenseRef `json:"licenses"`
}

type LicenseText struct {
	Name       string         `json:"name"`
	Text       string         `json:"text"`
	Components []ComponentRef `json:"components"`
}

type CopyrightText struct {
	ComponentVersionSummary ComponentRef `json:"componentVersionSummary"`
	OriginFullName          string       `json:"originFullName"`
	CopyrightTexts          []string     `json:"copyrightTexts"`
}

// Notices is the file content of a hub VERSION_LICENSE report.
type Notices struct {
	ComponentLicenses       []ComponentLicense `json:"componentLicenses"`
	LicenseTexts            []LicenseText      `json:"licenseTexts"`
	ComponentCopyrightTexts []CopyrightText    `json:"componentCopyrightTexts"`
	ProjectVersion          ComponentRef       `json:"projectVersion"`
}

type noticesReport struct {
	ReportContent []struct {
		FileName    string  `json:"fileName"`
		FileContent Notices `json:"fileContent"`
	} `json:"reportContent"`
}

// ParseNotices reads the notices out of a downloaded JSON report.
func ParseNotices(content []byte) (*Notices, error) {
	var report noticesReport

	if err := json.Unmarshal(content, &report); err != nil {
		return nil, fmt.Errorf("%w: notices report: %w", errors.ErrInvalidDoc, err)
	}

	if len(report.ReportContent) == 0 {
		return nil, fmt.Errorf("%w: notices report has no content", errors.ErrIncomplete)
	}

	return &report.ReportContent[0].FileContent, nil
}

// LoadTemplate parses the notices template at path, or the built-in one when
// path is empty.
func LoadTemplate(path string) (*template.Template, error) {
	text := defaultNotices

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("unable to read template")

			return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
		}

		text = string(content)
	}

	tmpl, err := template.New("notices").Parse(text)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to parse template")

		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	return tmpl, nil
}

// RenderNotices writes the notices through tmpl.
func RenderNotices(w io.Writer, tmpl *template.Template, notices *Notices) error {
	buf := bufio.NewWriter(w)

	if err := tmpl.Execute(buf, notices); err != nil {
		return fmt.Errorf("render notices: %w", err)
	}

	return buf.Flush()
}
