// Package ui embeds the small status page asterixd serves at its root.
package ui

import "embed"

//go:embed index.html
var Files embed.FS
