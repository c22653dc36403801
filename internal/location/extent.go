package location

import "github.com/golang/geo/s2"

// Extent is a lon/lat bounding box.
type Extent struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Center returns the box midpoint.
func (e Extent) Center() (lon, lat float64) {
	return (e.MinLon + e.MaxLon) / 2, (e.MinLat + e.MaxLat) / 2
}

// Extent bounds the representative points of all features, padded by
// padDeg degrees on each side. ok is false for an empty collection.
func (c *Collection) Extent(padDeg float64) (Extent, bool) {
	if c.Len() == 0 {
		return Extent{}, false
	}
	rect := s2.EmptyRect()
	for _, f := range c.Features {
		lon, lat := f.Point()
		rect = rect.AddPoint(s2.LatLngFromDegrees(lat, lon))
	}
	if padDeg > 0 {
		rect = rect.Expanded(s2.LatLngFromDegrees(padDeg, padDeg))
	}
	return Extent{
		MinLon: rect.Lo().Lng.Degrees(),
		MinLat: rect.Lo().Lat.Degrees(),
		MaxLon: rect.Hi().Lng.Degrees(),
		MaxLat: rect.Hi().Lat.Degrees(),
	}, true
}
