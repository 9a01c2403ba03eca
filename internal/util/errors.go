package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	// ErrDimensionMismatch signals an embedding vector whose length does
	// not match the retrieval collection, i.e. mixed embedding models.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
