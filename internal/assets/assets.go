// Package assets holds files embedded into the binary.
package assets

import "embed"

//go:embed config.yml
var FS embed.FS
