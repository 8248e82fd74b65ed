// Package buildinfo holds build-time information like the krar
// version, kept as its own package so other packages can import it
// without risking an import cycle — mirrors Sonobuoy's
// pkg/buildinfo.
package buildinfo

// Version is the current krar version, set by the go linker's -X flag
// at build time.
var Version = "v0.1.0"

// GitSHA is the commit being built, set by the go linker's -X flag at
// build time.
var GitSHA string
