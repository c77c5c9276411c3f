// Package common holds process-wide helpers shared by the binaries and
// libraries of this module: logger construction and build metadata.
package common

// Version is overridden at build time with -ldflags "-X ...common.Version=<v>".
var Version = "dev"

// PackageName is used as the metrics namespace prefix.
const PackageName = "pinkquery"
