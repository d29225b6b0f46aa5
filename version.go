package scribe

import _ "embed"

// Version is the version of the library.
//
//go:embed VERSION
var Version string
