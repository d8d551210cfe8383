package catalog

import "errors"

// Catalog errors
var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrEmptyQuery     = errors.New("search query is empty")
	ErrInvalidMovieID = errors.New("invalid movie id")
	ErrInvalidPage    = errors.New("limit must be positive and offset non-negative")
)
