// Package database owns the relational connection pool used by the gateway.
//
// It supports three drivers behind one *sql.DB:
//   - mysql (github.com/go-sql-driver/mysql), the production default
//   - postgres (github.com/lib/pq), with ? placeholders rebound to $n
//   - sqlite (github.com/mattn/go-sqlite3), for local development and tests
//
// The pool is opened once at startup, injected into the query layer and closed
// at shutdown. Open never dials: an unreachable server fails individual
// queries instead of the process, and database/sql re-establishes
// connections on the next request.
//
// Usage:
//
//	db, err := database.Open(database.Config{Driver: "mysql", Host: "localhost", Port: 3306, User: "root", Name: "capstoneone"})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
// Migrations embedded by the migrations package create the development schema
// on sqlite only; see Migrate.
package database
