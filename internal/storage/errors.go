package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("document store unreachable")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidDocument   = errors.New("invalid document")
)
