package database

import "errors"

// ErrDatabaseNotFound is returned by Open when the database file is missing
// and CreateIfNotExists is false.
var ErrDatabaseNotFound = errors.New("database not found")

// ErrInvalidLimit is returned for a non-positive row limit.
var ErrInvalidLimit = errors.New("limit must be positive")
