package sql

import (
	"database/sql"
	"fmt"

	// Database drivers used by the sql executor.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver describes a supported database backend.
type Driver struct {
	// Name is the config token, e.g. "sqlite" or "postgres".
	Name string
	// DriverName is the database/sql driver to open.
	DriverName string
	// Placeholder is the positional placeholder prefix: "?" or "$".
	Placeholder string
}

var drivers = map[string]Driver{
	"sqlite":   {Name: "sqlite", DriverName: "sqlite", Placeholder: "?"},
	"postgres": {Name: "postgres", DriverName: "pgx", Placeholder: "$"},
}

// GetDriver returns the driver for the given config token.
func GetDriver(name string) (Driver, bool) {
	d, ok := drivers[name]
	return d, ok
}

// Open opens a database handle for the driver.
func (d Driver) Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.Name, err)
	}
	return db, nil
}
