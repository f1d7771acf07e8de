// Package postgres stores tokvault records in PostgreSQL.
//
// Token managers live in their own table with indexed state, issuer,
// recipient and mint columns; every other record kind shares a
// (kind, id) keyed records table. Record bodies are JSONB. Schema
// changes are applied with sql-migrate from migrations compiled into
// the binary.
package postgres
