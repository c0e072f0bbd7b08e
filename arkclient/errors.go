package arkclient

import "errors"

var (
	// ErrNotFound mirrors the provider client's 404 handling.
	ErrNotFound = errors.New("arkclient: resource not found")

	// ErrRateLimited is returned after exhausting retries against a 429
	// response.
	ErrRateLimited = errors.New("arkclient: rate limited by server")

	// ErrUnexpectedStatus is returned for any non-2xx status this client
	// does not special-case.
	ErrUnexpectedStatus = errors.New("arkclient: unexpected response status")

	// ErrEventStreamClosed names a closed event stream. No function in
	// this package returns it: GetEventStream signals the end of the
	// stream by closing its channel.
	ErrEventStreamClosed = errors.New("arkclient: event stream closed")
)
