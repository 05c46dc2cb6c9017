package bom

import (
	"strings"

	"sigs.k8s.io/bom/pkg/spdx"
)

const spdxIDPrefix = "SPDXRef-"

// ConvertToK8sPackage turns a package record back into an SPDX package so it
// can be written out with sigs.k8s.io/bom.
func ConvertToK8sPackage(pkg Package, license, comment string) *spdx.Package {
	kpkg := &spdx.Package{
		Entity: spdx.Entity{
			Name:             pkg.Name,
			DownloadLocation: "NOASSERTION",
			LicenseConcluded: license,
		},
		Version:         pkg.Version,
		LicenseDeclared: license,
		Comment:         comment,
		ExternalRefs:    []spdx.ExternalRef{},
	}

	if pkg.Version == UnknownVersion {
		kpkg.Version = ""
	}

	// CycloneDX bom-refs are not valid SPDX identifiers, let the library build one
	if strings.HasPrefix(pkg.SPDXID, spdxIDPrefix) {
		kpkg.Entity.ID = pkg.SPDXID
	}

	if pkg.HasExternalID() {
		kpkg.ExternalRefs = append(kpkg.ExternalRefs,
			spdx.ExternalRef{
				Category: "PACKAGE_MANAGER",
				Type:     RefTypePurl,
				Locator:  pkg.ExternalID,
			})
	}

	return kpkg
}
