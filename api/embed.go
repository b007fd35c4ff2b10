// Package api holds the OpenAPI description of the companion HTTP surface.
package api

import _ "embed"

// OpenAPI is the embedded openapi.yaml
//
//go:embed openapi.yaml
var OpenAPI []byte
