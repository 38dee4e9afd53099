package appfs

import "embed"

// FS holds the files shipped with the binaries (migrations, email templates & assets).
//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
