package repository

import "errors"

var (
	// ErrNotFound is returned by Get when no record exists for the
	// requested id.
	ErrNotFound = errors.New("repository: record not found")

	// ErrClosed is returned by the kvstore backend for any operation
	// attempted after Close; the SQL backends return the database/sql
	// error instead.
	ErrClosed = errors.New("repository: backend closed")

	// ErrStorageUnavailable wraps a connection-class backend failure, for
	// the pgstore backend to flag a retry-worthy outage distinctly from
	// a query or constraint error.
	ErrStorageUnavailable = errors.New("repository: storage backend unavailable")
)
