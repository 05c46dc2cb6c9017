package reconcile

import "fmt"

// Outcome is the result of reconciling one package. The set of variants is
// closed: AlreadyInBOM, AddedKnownComponent, CreatedComponentAndVersion,
// CreatedVersion and CustomAlreadyExists.
type Outcome interface {
	fmt.Stringer
	outcome()
}

// AlreadyInBOM means the package (or its knowledge base match) is already a
// BOM component. Nothing was changed.
type AlreadyInBOM struct {
	Name    string
	Version string
}

// AddedKnownComponent means the knowledge base knew the package but the BOM
// did not list it, so the knowledge base version was added.
type AddedKnownComponent struct {
	Match Match
}

// CreatedComponentAndVersion means neither the knowledge base nor the custom
// catalog knew the package. A new custom component was created and added.
type CreatedComponentAndVersion struct {
	Name       string
	Version    string
	VersionURL string
}

// CreatedVersion means a custom component existed without the requested
// version. The version was created and added.
type CreatedVersion struct {
	Name       string
	Version    string
	VersionURL string
}

// CustomAlreadyExists means the custom component and version both existed.
// The existing version was added to the BOM.
type CustomAlreadyExists struct {
	Name       string
	Version    string
	VersionURL string
}

func (AlreadyInBOM) outcome()               {}
func (AddedKnownComponent) outcome()        {}
func (CreatedComponentAndVersion) outcome() {}
func (CreatedVersion) outcome()             {}
func (CustomAlreadyExists) outcome()        {}

func (o AlreadyInBOM) String() string {
	return fmt.Sprintf("already in bom: %s %s", o.Name, o.Version)
}

func (o AddedKnownComponent) String() string {
	return fmt.Sprintf("added known component: %s %s", o.Match.ComponentName, o.Match.ComponentVersion)
}

func (o CreatedComponentAndVersion) String() string {
	return fmt.Sprintf("created component and version: %s %s", o.Name, o.Version)
}

func (o CreatedVersion) String() string {
	return fmt.Sprintf("created version: %s %s", o.Name, o.Version)
}

func (o CustomAlreadyExists) String() string {
	return fmt.Sprintf("custom component exists: %s %s", o.Name, o.Version)
}
