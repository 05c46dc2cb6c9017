package report

import (
	"encoding/csv"
	"io"
	"strings"

	"stackerbuild.io/bomsync/pkg/hub"
)

var stripNewlines = strings.NewReplacer("\r", "", "\n", "") //nolint:gochecknoglobals

// WriteVulnerabilities writes one CSV row per vulnerable component:
// name, status, comment, component, component version, description.
// When component is set, other components are left out.
func WriteVulnerabilities(w io.Writer, comps []hub.VulnerableComponent, component string) (int, error) {
	cw := csv.NewWriter(w)
	rows := 0

	for _, comp := range comps {
		if component != "" && comp.ComponentName != component {
			continue
		}

		v := comp.Vulnerability

		row := []string{
			v.VulnerabilityName,
			v.RemediationStatus,
			stripNewlines.Replace(v.RemediationComment),
			comp.ComponentName,
			comp.ComponentVersionName,
			stripNewlines.Replace(v.Description),
		}
		if err := cw.Write(row); err != nil {
			return rows, err
		}

		rows++
	}

	cw.Flush()

	return rows, cw.Error()
}
