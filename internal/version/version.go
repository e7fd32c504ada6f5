// Package version holds the build version of nritya.
package version

// Version is the release version. Overridden at build time with
// -ldflags "-X github.com/ayusman/nritya/internal/version.Version=...".
var Version = "0.3.0"

// Name is the product name reported by the engine and the HTTP API.
const Name = "nritya"

// String returns the name and version, e.g. "nritya 0.3.0".
func String() string {
	return Name + " " + Version
}
