// Package all wires all built-in migration drivers into the driver factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the driver package.
//
// In other words, importing this package makes the following driver kinds
// available at runtime:
//
//   - "mysql"    (migrate/driver/mysql)
//   - "postgres" (migrate/driver/postgres)
//   - "sqlite"   (migrate/driver/sqlite)
//   - "mssql"    (migrate/driver/mssql)
//
// Typical usage (in a migration runner or similar wiring layer):
//
//	package main
//
//	import (
//	    "context"
//
//	    _ "migrate/driver/all" // enable all built-in backends
//
//	    "migrate/driver"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    d, err := driver.Connect(ctx, driver.Config{
//	        Kind:     "postgres",
//	        Host:     "localhost",
//	        User:     "app",
//	        Password: "secret",
//	        Database: "app",
//	    })
//	    if err != nil {
//	        // handle error
//	    }
//	    defer d.Close()
//
//	    if err := d.CreateMigrationsTable(ctx); err != nil {
//	        // handle error
//	    }
//
//	    // From this point on, the runner stays fully backend-agnostic: every
//	    // schema change goes through the driver.Driver interface regardless
//	    // of which backend is underneath.
//	}
package all

import (
	_ "migrate/driver/mssql"
	_ "migrate/driver/mysql"
	_ "migrate/driver/postgres"
	_ "migrate/driver/sqlite"
)
