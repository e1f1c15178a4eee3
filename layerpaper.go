package layerpaper

import _ "embed"

//go:embed VERSION
var Version string

//go:embed layerpaper.toml
var DefaultConfig string
