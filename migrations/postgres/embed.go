// Package migrations embeds SQL migration files.
package migrations

import "embed"

// AccountsFS contains the migrations of the reference account store.
//
//go:embed accounts/*.sql
var AccountsFS embed.FS

// AccountsDir is the directory within AccountsFS where migrations live.
const AccountsDir = "accounts"
