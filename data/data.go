// Package data embeds the default unit catalog and trait table so every
// binary, including the Lambda build, runs without files on disk.
package data

import _ "embed"

//go:embed champions.json
var Champions string

//go:embed traits.yaml
var Traits string
