// Package version carries build identification, populated at link time
// via -ldflags.
package version

var (
	// Version is the current release version.
	Version = "dev"
	// GitSHA is the git commit SHA of the build.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build identification on one line.
func String() string {
	return Version + " (" + GitSHA + ", built " + BuildTime + ")"
}
