package bom

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"sigs.k8s.io/bom/pkg/serialize"
	"sigs.k8s.io/bom/pkg/spdx"
	"stackerbuild.io/bomsync/pkg/buildgen"
)

func NewDocument(name string) *spdx.Document {
	doc := spdx.NewDocument()
	doc.Name = name
	doc.Creator.Tool = []string{fmt.Sprintf("stackerbuild.io/bomsync@%s", buildgen.Version())}

	return doc
}

func WriteDocument(doc *spdx.Document, path string) error {
	renderer := &serialize.JSON{}

	markup, err := renderer.Serialize(doc)
	if err != nil {
		return fmt.Errorf("serializing document: %w", err)
	}

	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil { //nolint:gosec,gomnd // G306: Expect WriteFile
		return fmt.Errorf("writing SBOM: %w", err)
	}

	return nil
}

// WriteMissingDocument writes the packages that were not found in a BOM as
// an SPDX document, so they can be re-imported or reviewed later.
func WriteMissingDocument(name, target string, pkgs []Package, path string) error {
	doc := NewDocument(name)

	comment := fmt.Sprintf("not present in the BOM of %s", target)

	for _, pkg := range pkgs {
		if err := doc.AddPackage(ConvertToK8sPackage(pkg, "NOASSERTION", comment)); err != nil {
			log.Warn().Err(err).Str("package", pkg.Name).Str("version", pkg.Version).Msg("unable to add package to doc")

			continue
		}
	}

	if err := WriteDocument(doc, path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to write missing packages document")

		return err
	}

	log.Info().Int("packages", len(pkgs)).Str("path", path).Msg("missing packages document written")

	return nil
}
