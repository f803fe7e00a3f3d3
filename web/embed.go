// Package web provides the embedded static assets for the frontend.
package web

import "embed"

// StaticFS contains the embedded frontend (HTML, CSS, JS).
//
//go:embed all:static
var StaticFS embed.FS
