// Package api embeds the OpenAPI document describing asterixd's HTTP
// surface, so the daemon can serve it at /openapi.yaml regardless of its
// working directory.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPIYAML []byte
