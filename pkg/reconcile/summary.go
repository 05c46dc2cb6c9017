package reconcile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"stackerbuild.io/bomsync/pkg/bom"
)

// Unmatched is a package that was not part of the BOM when the run started.
type Unmatched struct {
	Name    string  `json:"name"`
	SPDXID  string  `json:"spdx_id"`
	Version string  `json:"version"`
	Origin  *string `json:"origin"`
}

// Summary accumulates statistics over one run.
type Summary struct {
	Processed         int
	Skipped           int
	BOMMatches        int
	KBMatches         int
	MissingIdentifier int
	NotInBOM          int
	CreatedComponents int
	CreatedVersions   int
	Outcomes          []Outcome
	Unmatched         []Unmatched

	missing []bom.Package
	unique  map[string]int
}

func NewSummary() *Summary {
	return &Summary{unique: map[string]int{}}
}

// Unique is the number of distinct name and version pairs seen.
func (s *Summary) Unique() int {
	return len(s.unique)
}

// Duplicates returns the name@version keys seen more than once.
func (s *Summary) Duplicates() []string {
	dups := []string{}

	for key, count := range s.unique {
		if count > 1 {
			dups = append(dups, key)
		}
	}

	return dups
}

// Missing returns the unmatched packages in input order.
func (s *Summary) Missing() []bom.Package {
	return s.missing
}

// seen counts every package, hub project versions included.
func (s *Summary) seen(pkg bom.Package) {
	s.Processed++
	s.unique[pkg.Key()]++

	if !pkg.HasExternalID() {
		s.MissingIdentifier++
	}
}

func (s *Summary) record(pkg bom.Package, outcome Outcome, known bool) {
	s.Outcomes = append(s.Outcomes, outcome)

	if known {
		s.KBMatches++
	}

	switch outcome.(type) {
	case AlreadyInBOM:
		s.BOMMatches++

		return
	case CreatedComponentAndVersion:
		s.CreatedComponents++
	case CreatedVersion:
		s.CreatedVersions++
	case AddedKnownComponent, CustomAlreadyExists:
	}

	s.NotInBOM++

	var origin *string
	if pkg.HasExternalID() {
		id := pkg.ExternalID
		origin = &id
	}

	s.Unmatched = append(s.Unmatched, Unmatched{
		Name:    pkg.Name,
		SPDXID:  pkg.SPDXID,
		Version: pkg.Version,
		Origin:  origin,
	})
	s.missing = append(s.missing, pkg)
}

// WriteUnmatched writes the unmatched packages as a JSON list.
func (s *Summary) WriteUnmatched(path string) error {
	unmatched := s.Unmatched
	if unmatched == nil {
		unmatched = []Unmatched{}
	}

	content, err := json.Marshal(unmatched)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, content, 0o644); err != nil { //nolint:gosec,gomnd // G306: Expect WriteFile
		log.Error().Err(err).Str("path", path).Msg("unable to write unmatched packages")

		return err
	}

	return nil
}

// Print writes the stats block.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "Stats:")
	fmt.Fprintln(w, "------")
	fmt.Fprintf(w, " Packages processed: %d\n", s.Processed)
	fmt.Fprintf(w, " Hub project versions skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, " Packages missing from BOM: %d\n", s.NotInBOM)
	fmt.Fprintf(w, " BOM matches: %d\n", s.BOMMatches)
	fmt.Fprintf(w, " KB matches: %d\n", s.KBMatches)
	fmt.Fprintf(w, " Packages missing purl: %d\n", s.MissingIdentifier)
	fmt.Fprintf(w, " Custom components created: %d\n", s.CreatedComponents)
	fmt.Fprintf(w, " Custom component versions created: %d\n", s.CreatedVersions)
	fmt.Fprintf(w, " %d unique packages processed\n", s.Unique())
}

// Log emits the stats as a single structured log line.
func (s *Summary) Log() {
	log.Info().Int("processed", s.Processed).Int("skipped", s.Skipped).
		Int("not_in_bom", s.NotInBOM).Int("bom_matches", s.BOMMatches).
		Int("kb_matches", s.KBMatches).Int("missing_purl", s.MissingIdentifier).
		Int("created_components", s.CreatedComponents).Int("created_versions", s.CreatedVersions).
		Int("unique", s.Unique()).Msg("import summary")
}
