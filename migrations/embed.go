package migrations

import "embed"

// Postgres holds the golang-migrate files for the relational store
//
//go:embed *.sql
var Postgres embed.FS

// ClickHouse holds the mention history schema, applied statement by statement
//
//go:embed clickhouse/*.sql
var ClickHouse embed.FS
