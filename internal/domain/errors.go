package domain

import "errors"

// Error kinds surfaced by the client. Callers distinguish them with errors.Is.
var (
	// ErrConnectivity means the service could not be reached or answered with an
	// unexpected status code.
	ErrConnectivity = errors.New("biosim connectivity error")

	// ErrServer means the service answered but the reply is an error payload.
	ErrServer = errors.New("biosim server error")

	// ErrDecode means the reply could not be mapped onto the expected shape.
	ErrDecode = errors.New("biosim decode error")

	// ErrValidation means caller-supplied parameters are out of contract. No network
	// call has been made.
	ErrValidation = errors.New("biosim validation error")

	// ErrAggregation means a month or variable is missing from a monthly dataset.
	ErrAggregation = errors.New("biosim aggregation error")
)
