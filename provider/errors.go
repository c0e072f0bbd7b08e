package provider

import "errors"

var (
	// ErrNotFound mirrors the mempool.space client's 404 handling: the
	// requested swap/resource does not exist at the provider.
	ErrNotFound = errors.New("provider: resource not found")

	// ErrRateLimited is returned after exhausting retries against a 429
	// response.
	ErrRateLimited = errors.New("provider: rate limited by server")

	// ErrUnexpectedStatus is returned for any non-2xx status this client
	// does not special-case.
	ErrUnexpectedStatus = errors.New("provider: unexpected response status")
)
