package postgres

import (
	migrate "github.com/rubenv/sql-migrate"
)

// Migrations is the schema history, oldest first.
var Migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_records",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS records (
					kind       TEXT        NOT NULL,
					id         TEXT        NOT NULL,
					version    BIGINT      NOT NULL,
					data       JSONB       NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
					PRIMARY KEY (kind, id)
				)`,
			},
			Down: []string{`DROP TABLE IF EXISTS records`},
		},
		{
			Id: "0002_token_managers",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS token_managers (
					id         TEXT        PRIMARY KEY,
					mint       TEXT        NOT NULL UNIQUE,
					issuer     TEXT        NOT NULL,
					recipient  TEXT,
					state      TEXT        NOT NULL,
					version    BIGINT      NOT NULL,
					data       JSONB       NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`,
				`CREATE INDEX IF NOT EXISTS token_managers_state_idx ON token_managers (state)`,
				`CREATE INDEX IF NOT EXISTS token_managers_issuer_idx ON token_managers (issuer)`,
				`CREATE INDEX IF NOT EXISTS token_managers_recipient_idx ON token_managers (recipient)`,
			},
			Down: []string{`DROP TABLE IF EXISTS token_managers`},
		},
		{
			Id: "0003_ledger",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS ledger_entries (
					key        BYTEA       PRIMARY KEY,
					value      BYTEA       NOT NULL,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
				)`,
			},
			Down: []string{`DROP TABLE IF EXISTS ledger_entries`},
		},
	},
}
