// Package db embeds the storefront database schema.
package db

import _ "embed"

// Schema creates every storefront table. It is idempotent and safe to run
// on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
