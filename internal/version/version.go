// Package version holds the Quiver build version.
package version

// Version is the semantic version of the quiver binary.
// Overridden at build time via -ldflags "-X ...version.Version=x.y.z".
var Version = "0.4.0"
