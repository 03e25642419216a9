package version

// Set through -ldflags "-X stanclient/internal/version.version=...".
var (
	version = "edge"

	gitcommit, gitversion string
)

// Version is a semantic version, or "edge" for unreleased builds.
func Version() string {
	return version
}

func Commit() string {
	return gitcommit
}

func GitVersion() string {
	return gitversion
}

// String describes the build in one line.
func String() string {
	s := version
	if gitcommit != "" {
		s += " (" + gitcommit + ")"
	}
	return s
}
