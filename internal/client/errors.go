package client

import "errors"

// The client maps every failure into one of three categories so callers can
// branch with errors.Is instead of inspecting transport details.
var (
	// ErrInvalidRequest means the request could not even be built. This
	// indicates a caller bug, not a server problem.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrTransport wraps connection, DNS and timeout errors from the
	// underlying http.Client.
	ErrTransport = errors.New("transport failure")
	// ErrDecode means the response body did not match the expected schema,
	// usually a server/client version mismatch. Error status codes also land
	// here: their payloads never decode into the expected entity.
	ErrDecode = errors.New("response decode failure")
)
