// Package buildgen carries build metadata injected with -ldflags -X.
package buildgen

//nolint:gochecknoglobals
var (
	Commit     = "unknown"
	ReleaseTag = ""
)

// Version is the release tag when set, otherwise the commit.
func Version() string {
	if ReleaseTag != "" {
		return ReleaseTag
	}

	return Commit
}
