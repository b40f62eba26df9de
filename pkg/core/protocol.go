package core

import "slices"

// Protocol maps venue-neutral operations onto one venue's endpoints.
// Implementations are stateless; signing and dispatch happen elsewhere.
type Protocol interface {
	// Name returns the exchange identifier (e.g., "binance").
	Name() string

	// SupportedOperations returns the operations BuildRequest accepts.
	SupportedOperations() []Operation

	// BuildRequest constructs the request for op from params. Operations the
	// venue does not offer fail with an unsupported error, missing parameters
	// with a bad request error.
	BuildRequest(op Operation, params Params) (*Request, error)
}

// Supports reports whether p can build requests for op.
func Supports(p Protocol, op Operation) bool {
	return slices.Contains(p.SupportedOperations(), op)
}
