// Package database provides SQLite connection management and schema
// migrations for BabyBox.
//
// The appliance runs on a single-board computer with the database on
// flash storage, so the connection is opened with WAL journaling and a
// busy timeout, pooled down to one writer connection.
//
// Migrations are embedded in the binary (see the migrations package)
// and applied at startup, each inside its own transaction.
package database
