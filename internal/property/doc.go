// Package property provides the properties and units managed by Amarati.
//
// A Property (a building or estate) belongs to an owner and may be looked
// after by a supervisor. It contains Units (apartments, offices) which may
// be let to a tenant. Property.TotalUnits is kept in step with the unit
// rows by the repository.
//
// The package provides a Repository interface with a SQLite implementation.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines.
package property
