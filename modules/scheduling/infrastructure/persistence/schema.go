package persistence

import "embed"

// SchemaFS holds the goose migrations of the scheduling module.
//
//go:embed schema/*.sql
var SchemaFS embed.FS

const SchemaDir = "schema"
