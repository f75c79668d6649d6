// Copyright 2017 First Flamingo Enterprise B.V.
// This software is released under an MIT/X11 open source license.

package pgstore

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal store flow, either at initial
// startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1-resource",
			Up: []string{`
CREATE TABLE resource (
    class VARCHAR(63) NOT NULL,
    id VARCHAR(63) NOT NULL,
    last_modified TIMESTAMP WITH TIME ZONE NOT NULL,
    payload BYTEA NOT NULL,
    PRIMARY KEY (class, id)
)`,
				`CREATE INDEX resource_order ON resource (class, last_modified DESC, id ASC)`,
			},
			Down: []string{
				`DROP INDEX resource_order`,
				`DROP TABLE resource`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
