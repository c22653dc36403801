package raster

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// Format identifies an on-disk raster encoding.
type Format string

// Supported formats.
const (
	FormatGeoTIFF Format = "geotiff"
	FormatNetCDF  Format = "netcdf"
)

// ParseFormat accepts "geotiff", "tif", "tiff", "netcdf" or "nc".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "geotiff", "tif", "tiff":
		return FormatGeoTIFF, nil
	case "netcdf", "nc":
		return FormatNetCDF, nil
	}
	return "", eris.Wrapf(model.ErrUnsupportedFormat, "raster format %q", s)
}

// FormatFor infers the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return FormatGeoTIFF, nil
	case ".nc", ".nc4", ".cdf":
		return FormatNetCDF, nil
	}
	return "", eris.Wrapf(model.ErrUnsupportedFormat, "raster file %s", path)
}

// Ext returns the canonical file extension for f.
func (f Format) Ext() string {
	if f == FormatNetCDF {
		return ".nc"
	}
	return ".tif"
}

// Read loads a single-band grid, picking the codec from the file extension.
// variable names the NetCDF variable and is ignored for GeoTIFF.
func Read(path, variable string) (Grid, error) {
	f, err := FormatFor(path)
	if err != nil {
		return Grid{}, err
	}
	if f == FormatNetCDF {
		if variable == "" {
			return Grid{}, eris.Wrapf(model.ErrUnsupportedFormat, "netcdf %s: no variable named", path)
		}
		return ReadNetCDF(path, variable)
	}
	return ReadGeoTIFF(path)
}

// Write stores g in the requested format. name becomes the NetCDF variable
// name or the TIFF image description.
func Write(path string, f Format, name string, g Grid) error {
	if f == FormatNetCDF {
		return WriteNetCDF(path, name, g, map[string]any{"title": name})
	}
	return WriteGeoTIFF(path, g, TIFFOptions{Description: name})
}
