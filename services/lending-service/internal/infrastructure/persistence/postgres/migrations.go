package postgres

import "embed"

// Migrations holds the lending schema in golang-migrate layout.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that holds the SQL files.
const MigrationsDir = "migrations"
