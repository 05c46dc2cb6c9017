package bom

import (
	"strings"
)

// UnknownVersion stands in for a package version the SBOM did not declare.
const UnknownVersion = "UNKNOWN"

// External reference types with special meaning during import.
const (
	RefTypePurl           = "purl"
	RefTypeProjectVersion = "BlackDuck-Version"
)

type Format string

const (
	FormatSPDX      Format = "spdx"
	FormatCycloneDX Format = "cyclonedx"
)

// MIMEType is the content type the hub scan endpoint expects for the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatSPDX:
		return "application/spdx"
	case FormatCycloneDX:
		return "application/vnd.cyclonedx"
	default:
		return ""
	}
}

// Package is one package record read from an SBOM document.
type Package struct {
	Name    string
	Version string
	// ExternalID is the first package URL declared for the package, if any.
	ExternalID string
	SPDXID     string
	// Internal marks packages that reference a hub project version rather
	// than a third-party component.
	Internal bool
}

// Key identifies a (name, version) pair for duplicate detection.
func (p Package) Key() string {
	return p.Name + "@" + p.Version
}

// HasExternalID reports whether a package URL was declared.
func (p Package) HasExternalID() bool {
	return p.ExternalID != ""
}

// normalize trims name and version and fills the version placeholder.
// It returns false when the package has no usable name.
func (p *Package) normalize() bool {
	p.Name = strings.TrimSpace(p.Name)
	p.Version = strings.TrimSpace(p.Version)

	if p.Version == "" {
		p.Version = UnknownVersion
	}

	return p.Name != ""
}

// Document is the subset of an SBOM document the import needs.
type Document struct {
	Name     string
	Format   Format
	Path     string
	Packages []Package
	// Skipped counts records dropped for having an empty name.
	Skipped int

	validate func() []string
}

// Validate returns format-level validation messages. An empty result means
// the document looked valid or the format has no validator.
func (d *Document) Validate() []string {
	if d.validate == nil {
		return nil
	}

	return d.validate()
}
