// Package version is the single source of truth for build version info.
package version

// Overridable at build time:
// go build -ldflags "-X fathom/internal/version.Version=1.0.0 -X fathom/internal/version.Commit=abc123"
var (
	// Version is the semantic version.
	Version = "0.1.0"

	// Commit is the git commit hash (set at build time).
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time).
	BuildDate = "unknown"
)

// Info returns the version, with the short commit when one was baked in.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns complete version information, one field per line.
func Full() string {
	return "fathom version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate
}
