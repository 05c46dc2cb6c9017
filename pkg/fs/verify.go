package fs

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"sigs.k8s.io/bom/pkg/spdx"
	"stackerbuild.io/bomsync/errors"
	"stackerbuild.io/bomsync/pkg/bom"
)

// Missing returns the entries whose checksum is not among known. Checksums
// compare case-insensitively.
func Missing(entries []Entry, known []string) []Entry {
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		seen[strings.ToLower(k)] = true
	}

	missing := []Entry{}

	for _, entry := range entries {
		if seen[strings.ToLower(entry.Checksum)] {
			continue
		}

		log.Debug().Str("path", entry.Path).Str("sha256", entry.Checksum).Msg("no upload for file")

		missing = append(missing, entry)
	}

	return missing
}

// Verify fails with ErrIncomplete when some entries have no upload, after
// writing them to an SPDX document at missing, if set.
func Verify(entries []Entry, known []string, missing string) ([]Entry, error) {
	absent := Missing(entries, known)
	if len(absent) == 0 {
		return absent, nil
	}

	if missing != "" {
		if err := WriteMissing(absent, missing); err != nil {
			return absent, err
		}
	}

	return absent, fmt.Errorf("%w: %d files not uploaded", errors.ErrIncomplete, len(absent))
}

// WriteMissing writes the entries as the files of an SPDX document.
func WriteMissing(entries []Entry, path string) error {
	mdoc := bom.NewDocument("missing-uploads-document")

	for _, entry := range entries {
		sfile := spdx.NewFile()
		sfile.SetEntity(
			&spdx.Entity{
				Name:     filepath.Base(entry.Path),
				Checksum: map[string]string{"SHA256": entry.Checksum},
			},
		)

		if err := mdoc.AddFile(sfile); err != nil {
			log.Error().Err(err).Str("path", entry.Path).Msg("unable to add file to document")

			return err
		}
	}

	if err := bom.WriteDocument(mdoc, path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to write missing entries")

		return err
	}

	log.Info().Int("count", len(entries)).Str("path", path).Msg("missing uploads document written")

	return nil
}
