package errors

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalid                   = errors.New("invalid")
	ErrConflict                  = errors.New("conflict")
	ErrNoContentProvided         = errors.New("at least one thought category must be provided")
	ErrEntryNotFound             = errors.New("entry not found")
	ErrIndexUnavailable          = errors.New("vector index unavailable")
	ErrEmbeddingProviderDegraded = errors.New("embedding provider degraded")
	ErrDimensionMismatch         = errors.New("embedding dimension mismatch")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrEntryNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsIndexUnavailable(err error) bool {
	return errors.Is(err, ErrIndexUnavailable)
}
