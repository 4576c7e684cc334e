package inventory

import "fmt"

// sqliteSchema creates the inventory tables on SQLite. Booleans are stored
// as integers and DATETIME columns round-trip as time.Time.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS warehouses (
	id          TEXT PRIMARY KEY,
	deleted     BOOLEAN,
	deleted_at  DATETIME,
	updated_at  DATETIME NOT NULL,
	code        TEXT NOT NULL,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	is_default  BOOLEAN NOT NULL DEFAULT 0,
	bins_count  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS bins (
	id           TEXT PRIMARY KEY,
	deleted      BOOLEAN,
	deleted_at   DATETIME,
	updated_at   DATETIME NOT NULL,
	warehouse_id TEXT NOT NULL REFERENCES warehouses(id),
	label        TEXT NOT NULL,
	capacity     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS addresses (
	id               TEXT PRIMARY KEY,
	deleted          BOOLEAN,
	deleted_at       DATETIME,
	updated_at       DATETIME NOT NULL,
	addressable_id   TEXT NOT NULL,
	addressable_type TEXT NOT NULL,
	line             TEXT NOT NULL,
	city             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bins_warehouse ON bins (warehouse_id);
CREATE INDEX IF NOT EXISTS idx_addresses_owner ON addresses (addressable_type, addressable_id);
`

// postgresSchema creates the inventory tables on PostgreSQL.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS warehouses (
	id          UUID PRIMARY KEY,
	deleted     BOOLEAN DEFAULT false,
	deleted_at  TIMESTAMPTZ,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	code        TEXT NOT NULL,
	name        TEXT NOT NULL,
	type        TEXT NOT NULL,
	is_default  BOOLEAN NOT NULL DEFAULT false,
	bins_count  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS bins (
	id           UUID PRIMARY KEY,
	deleted      BOOLEAN DEFAULT false,
	deleted_at   TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	warehouse_id UUID NOT NULL REFERENCES warehouses(id),
	label        TEXT NOT NULL,
	capacity     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS addresses (
	id               UUID PRIMARY KEY,
	deleted          BOOLEAN DEFAULT false,
	deleted_at       TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	addressable_id   UUID NOT NULL,
	addressable_type TEXT NOT NULL,
	line             TEXT NOT NULL,
	city             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bins_warehouse ON bins (warehouse_id);
CREATE INDEX IF NOT EXISTS idx_addresses_owner ON addresses (addressable_type, addressable_id);
`

// Schema returns the DDL creating the inventory tables for driver
// ("postgres" or "sqlite").
func Schema(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return sqliteSchema, nil
	case "postgres":
		return postgresSchema, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}
