// Package model holds the types and error taxonomy shared by the flood pipelines.
package model

import "github.com/rotisserie/eris"

// Error taxonomy. Pipelines wrap these with eris.Wrapf to add the offending
// layer, band, column or feature; callers match with eris.Is.
var (
	// ErrShapeMismatch is returned when grids or bands combined in one
	// operation do not share identical dimensions.
	ErrShapeMismatch = eris.New("shape mismatch")

	// ErrWeightLengthMismatch is returned when the weight vector length
	// differs from the number of layers.
	ErrWeightLengthMismatch = eris.New("weight length mismatch")

	// ErrSchemaMismatch is returned when an expected table column or
	// geometry field is absent or unparseable.
	ErrSchemaMismatch = eris.New("schema mismatch")

	// ErrInvalidWeight is returned for negative or non-finite weights.
	ErrInvalidWeight = eris.New("invalid weight")

	// ErrNoLayers is returned when a combination is requested over zero layers.
	ErrNoLayers = eris.New("no layers")

	// ErrGeorefMismatch is returned when two georeferenced grids disagree on
	// CRS or transform. Alignment is asserted, never repaired.
	ErrGeorefMismatch = eris.New("georeference mismatch")

	// ErrUnsupportedFormat is returned for raster or table encodings the
	// readers do not handle.
	ErrUnsupportedFormat = eris.New("unsupported format")
)
