// Package appfs embeds the static files shipped with the binaries: SQL migrations, email templates and assets.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
