package appfs

import "embed"

// FS holds the SQL migrations of the database and the email templates.
// Layouts are prefixed with "_", which a bare directory pattern would skip.
//go:embed migrations templates/email/*
var FS embed.FS
