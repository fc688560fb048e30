package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPolygon is returned when an OCR bounding polygon has no vertices
	ErrEmptyPolygon = errors.New("bounding polygon has no vertices")

	// ErrNotDirectory is returned when the image path is not a directory
	ErrNotDirectory = errors.New("path is not a directory")

	// ErrUnexpectedPattern is returned when a regex match fits none of the expected branches
	ErrUnexpectedPattern = errors.New("unexpected pattern in block text")

	// ErrUnexpectedPrice is returned when a price has a digit pattern the price fixer does not handle
	ErrUnexpectedPrice = errors.New("unexpected price")

	// ErrLowConfidence is returned when the product name match is below the threshold
	ErrLowConfidence = errors.New("product match confidence below threshold")

	// ErrNoProductMatch is returned when the dictionary yields no candidate at all
	ErrNoProductMatch = errors.New("no product name candidate")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrOCRFailure is returned when the OCR service request fails
	ErrOCRFailure = errors.New("OCR request failed")

	// ErrAnnotationNotFound is returned when no stored annotation exists for an image
	ErrAnnotationNotFound = errors.New("annotation not found")
)

// ExtractionError identifies the image and cluster a fatal extraction
// error came from.
type ExtractionError struct {
	Image   string
	Cluster int
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Cluster < 0 {
		return fmt.Sprintf("image %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("image %s, cluster %d: %v", e.Image, e.Cluster, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
