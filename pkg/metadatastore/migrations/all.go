// Package migrations holds the metadata schema scripts. Each script sets
// PRAGMA user_version to the number in its file name.
package migrations

import "embed"

//go:embed *.sql
var AllUp embed.FS
