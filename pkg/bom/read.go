package bom

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/rs/zerolog/log"
	spdxjson "github.com/spdx/tools-golang/json"
	"github.com/spdx/tools-golang/spdx"
	"github.com/spdx/tools-golang/spdxlib"
	"github.com/spdx/tools-golang/tagvalue"
	"stackerbuild.io/bomsync/errors"
)

const cycloneDXNamespace = "http://cyclonedx.org/schema/bom"

// DetectFormat identifies a document by its structure: the top-level
// spdxVersion or bomFormat key of a JSON document, the SPDXVersion line of a
// tag-value document or the cyclonedx.org bom root of an XML document.
func DetectFormat(content []byte) (Format, error) {
	trimmed := bytes.TrimSpace(content)

	var (
		format Format
		err    error
	)

	switch {
	case isJSON(trimmed):
		format, err = detectJSON(trimmed)
	case len(trimmed) > 0 && trimmed[0] == '<':
		format, err = detectXML(trimmed)
	default:
		format = detectTagValue(trimmed)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInvalidDoc, err)
	}

	if format == "" {
		return "", fmt.Errorf("%w: could not identify sbom content", errors.ErrUnsupported)
	}

	return format, nil
}

// detectJSON walks the keys of the top-level object without decoding their values.
func detectJSON(content []byte) (Format, error) {
	dec := json.NewDecoder(bytes.NewReader(content))

	if _, err := dec.Token(); err != nil {
		return "", err
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}

		switch tok {
		case "spdxVersion":
			return FormatSPDX, nil
		case "bomFormat":
			return FormatCycloneDX, nil
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return "", err
		}
	}

	return "", nil
}

func detectXML(content []byte) (Format, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))

	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}

		root, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if root.Name.Local == "bom" && strings.HasPrefix(root.Name.Space, cycloneDXNamespace) {
			return FormatCycloneDX, nil
		}

		return "", nil
	}
}

func detectTagValue(content []byte) Format {
	for _, line := range bytes.Split(content, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("SPDXVersion:")) {
			return FormatSPDX
		}
	}

	return ""
}

// OpenDoc reads an SPDX (JSON or tag-value) or CycloneDX (JSON or XML)
// document and returns its normalized package records.
func OpenDoc(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to read sbom")

		return nil, fmt.Errorf("%w: %w", errors.ErrConfig, err)
	}

	format, err := DetectFormat(content)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("unable to detect sbom format")

		return nil, err
	}

	var doc *Document

	switch format {
	case FormatSPDX:
		doc, err = parseSPDX(content)
	case FormatCycloneDX:
		doc, err = parseCycloneDX(content)
	}

	if err != nil {
		log.Error().Err(err).Str("path", path).Str("format", string(format)).Msg("unable to parse sbom")

		return nil, fmt.Errorf("%w: %s: %w", errors.ErrInvalidDoc, path, err)
	}

	doc.Path = path

	log.Info().Str("path", path).Str("format", string(format)).Str("name", doc.Name).
		Int("packages", len(doc.Packages)).Msg("sbom parsed")

	return doc, nil
}

func isJSON(content []byte) bool {
	trimmed := bytes.TrimSpace(content)

	return len(trimmed) > 0 && trimmed[0] == '{'
}

func parseSPDX(content []byte) (*Document, error) {
	var (
		sdoc *spdx.Document
		err  error
	)

	if isJSON(content) {
		sdoc, err = spdxjson.Read(bytes.NewReader(content))
	} else {
		sdoc, err = tagvalue.Read(bytes.NewReader(content))
	}

	if err != nil {
		return nil, err
	}

	doc := &Document{
		Name:   sdoc.DocumentName,
		Format: FormatSPDX,
		validate: func() []string {
			if err := spdxlib.ValidateDocument(sdoc); err != nil {
				return []string{err.Error()}
			}

			return nil
		},
	}

	for _, spkg := range sdoc.Packages {
		if spkg == nil {
			continue
		}

		pkg := Package{
			Name:    spkg.PackageName,
			Version: spkg.PackageVersion,
			SPDXID:  spdxID(string(spkg.PackageSPDXIdentifier)),
		}

		// only the first purl or project-version reference counts
		for _, ref := range spkg.PackageExternalReferences {
			if ref == nil {
				continue
			}

			if ref.RefType == RefTypePurl {
				pkg.ExternalID = ref.Locator

				break
			}

			if ref.RefType == RefTypeProjectVersion {
				pkg.Internal = true

				break
			}
		}

		doc.add(pkg)
	}

	return doc, nil
}

// spdxID restores the prefix tools-golang strips from element identifiers.
func spdxID(id string) string {
	if id == "" || strings.HasPrefix(id, spdxIDPrefix) {
		return id
	}

	return spdxIDPrefix + id
}

func parseCycloneDX(content []byte) (*Document, error) {
	fileFormat := cdx.BOMFileFormatXML
	if isJSON(content) {
		fileFormat = cdx.BOMFileFormatJSON
	}

	var cbom cdx.BOM
	if err := cdx.NewBOMDecoder(bytes.NewReader(content), fileFormat).Decode(&cbom); err != nil {
		return nil, err
	}

	if fileFormat == cdx.BOMFileFormatJSON && cbom.BOMFormat != cdx.BOMFormat {
		return nil, fmt.Errorf("unexpected bomFormat %q", cbom.BOMFormat)
	}

	doc := &Document{Format: FormatCycloneDX}

	if cbom.Metadata != nil && cbom.Metadata.Component != nil {
		doc.Name = cbom.Metadata.Component.Name
	}

	if cbom.Components != nil {
		doc.addComponents(*cbom.Components)
	}

	return doc, nil
}

func (d *Document) addComponents(components []cdx.Component) {
	for _, comp := range components {
		d.add(Package{
			Name:       comp.Name,
			Version:    comp.Version,
			ExternalID: comp.PackageURL,
			SPDXID:     comp.BOMRef,
		})

		if comp.Components != nil {
			d.addComponents(*comp.Components)
		}
	}
}

func (d *Document) add(pkg Package) {
	if !pkg.normalize() {
		log.Warn().Str("spdxid", pkg.SPDXID).Str("version", pkg.Version).Msg("skipping package with empty name")

		d.Skipped++

		return
	}

	d.Packages = append(d.Packages, pkg)
}
