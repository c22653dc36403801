package raster

import (
	"encoding/binary"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/model"
)

// TIFF field types.
const (
	tiffByte   = 1
	tiffASCII  = 2
	tiffShort  = 3
	tiffLong   = 4
	tiffFloat  = 11
	tiffDouble = 12
)

// Baseline and GeoTIFF tags.
const (
	tagImageWidth       = 256
	tagImageLength      = 257
	tagBitsPerSample    = 258
	tagCompression      = 259
	tagPhotometric      = 262
	tagImageDescription = 270
	tagStripOffsets     = 273
	tagSamplesPerPixel  = 277
	tagRowsPerStrip     = 278
	tagStripByteCounts  = 279
	tagPlanarConfig     = 284
	tagTileWidth        = 322
	tagSampleFormat     = 339
	tagModelPixelScale  = 33550
	tagModelTiepoint    = 33922
	tagGeoKeyDirectory  = 34735
	tagGDALNoData       = 42113
)

// GeoKey IDs.
const (
	keyModelType      = 1024
	keyRasterType     = 1025
	keyGeographicType = 2048
	keyProjectedType  = 3072
)

const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

// TIFFOptions configures GeoTIFF output.
type TIFFOptions struct {
	// Description is stored in the ImageDescription tag (run id, pipeline, ...).
	Description string
}

type tiffImage struct {
	rows, cols int
	bits       uint16
	format     uint16
	pixels     []byte
	georef     *Georef
	nodata     string
	desc       string
}

// WriteGeoTIFF writes g as an uncompressed single-band float32 GeoTIFF.
// NaN cells are declared nodata through the GDAL_NODATA tag.
func WriteGeoTIFF(path string, g Grid, opts TIFFOptions) error {
	rows, cols := g.Dims()
	if rows == 0 || cols == 0 {
		return eris.Wrap(model.ErrShapeMismatch, "geotiff: empty grid")
	}
	pix := make([]byte, rows*cols*4)
	for i, v := range g.Data() {
		binary.LittleEndian.PutUint32(pix[i*4:], math.Float32bits(float32(v)))
	}
	return writeTIFF(path, tiffImage{
		rows: rows, cols: cols,
		bits: 32, format: sampleFloat,
		pixels: pix,
		georef: g.Georef,
		nodata: "nan",
		desc:   opts.Description,
	})
}

// WriteMaskGeoTIFF writes m as an uncompressed single-band uint8 GeoTIFF.
func WriteMaskGeoTIFF(path string, m Mask, opts TIFFOptions) error {
	if m.Rows == 0 || m.Cols == 0 || len(m.Data) != m.Rows*m.Cols {
		return eris.Wrapf(model.ErrShapeMismatch, "geotiff: mask %dx%d with %d cells", m.Rows, m.Cols, len(m.Data))
	}
	return writeTIFF(path, tiffImage{
		rows: m.Rows, cols: m.Cols,
		bits: 8, format: sampleUint,
		pixels: m.Data,
		georef: m.Georef,
		desc:   opts.Description,
	})
}

// maxGeoKeyEPSG is the largest code a SHORT GeoKey value can carry.
const maxGeoKeyEPSG = 65535

func writeTIFF(path string, img tiffImage) error {
	if img.georef != nil && (img.georef.EPSG < 0 || img.georef.EPSG > maxGeoKeyEPSG) {
		return eris.Wrapf(model.ErrUnsupportedFormat,
			"geotiff: %s cannot be stored in a GeoKey (max %d)", img.georef.CRS(), maxGeoKeyEPSG)
	}
	if err := os.WriteFile(path, encodeTIFF(img), 0o644); err != nil {
		return eris.Wrapf(err, "geotiff: write %s", path)
	}
	return nil
}

type ifdEntry struct {
	tag     uint16
	typ     uint16
	count   uint32
	payload []byte
}

func shortEntry(tag uint16, vals ...uint16) ifdEntry {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return ifdEntry{tag: tag, typ: tiffShort, count: uint32(len(vals)), payload: b}
}

func longEntry(tag uint16, vals ...uint32) ifdEntry {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return ifdEntry{tag: tag, typ: tiffLong, count: uint32(len(vals)), payload: b}
}

func doubleEntry(tag uint16, vals ...float64) ifdEntry {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return ifdEntry{tag: tag, typ: tiffDouble, count: uint32(len(vals)), payload: b}
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffASCII, count: uint32(len(b)), payload: b}
}

// encodeTIFF lays the file out as header, IFD, out-of-line tag values, pixels.
// The whole image is one strip.
func encodeTIFF(img tiffImage) []byte {
	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(img.cols)),
		longEntry(tagImageLength, uint32(img.rows)),
		shortEntry(tagBitsPerSample, img.bits),
		shortEntry(tagCompression, 1),
		shortEntry(tagPhotometric, 1),
		longEntry(tagStripOffsets, 0),
		shortEntry(tagSamplesPerPixel, 1),
		longEntry(tagRowsPerStrip, uint32(img.rows)),
		longEntry(tagStripByteCounts, uint32(len(img.pixels))),
		shortEntry(tagPlanarConfig, 1),
		shortEntry(tagSampleFormat, img.format),
	}
	if img.desc != "" {
		entries = append(entries, asciiEntry(tagImageDescription, img.desc))
	}
	if img.georef != nil {
		t := img.georef.Transform
		entries = append(entries,
			doubleEntry(tagModelPixelScale, t.PixelWidth, t.PixelHeight, 0),
			doubleEntry(tagModelTiepoint, 0, 0, 0, t.OriginX, t.OriginY, 0),
			shortEntry(tagGeoKeyDirectory, geoKeys(img.georef.EPSG)...),
		)
	}
	if img.nodata != "" {
		entries = append(entries, asciiEntry(tagGDALNoData, img.nodata))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	n := len(entries)
	offset := 8 + 2 + 12*n + 4
	ext := make([]int, n)
	for i, e := range entries {
		if len(e.payload) <= 4 {
			continue
		}
		offset += offset % 2
		ext[i] = offset
		offset += len(e.payload)
	}
	offset += offset % 2
	pixelOffset := offset

	for i := range entries {
		if entries[i].tag == tagStripOffsets {
			binary.LittleEndian.PutUint32(entries[i].payload, uint32(pixelOffset))
		}
	}

	buf := make([]byte, pixelOffset+len(img.pixels))
	copy(buf, "II")
	binary.LittleEndian.PutUint16(buf[2:], 42)
	binary.LittleEndian.PutUint32(buf[4:], 8)

	p := 8
	binary.LittleEndian.PutUint16(buf[p:], uint16(n))
	p += 2
	for i, e := range entries {
		binary.LittleEndian.PutUint16(buf[p:], e.tag)
		binary.LittleEndian.PutUint16(buf[p+2:], e.typ)
		binary.LittleEndian.PutUint32(buf[p+4:], e.count)
		if len(e.payload) <= 4 {
			copy(buf[p+8:p+12], e.payload)
		} else {
			binary.LittleEndian.PutUint32(buf[p+8:], uint32(ext[i]))
			copy(buf[ext[i]:], e.payload)
		}
		p += 12
	}
	copy(buf[pixelOffset:], img.pixels)
	return buf
}

// geoKeys builds the GeoKeyDirectory for an EPSG code. Codes in 4000-4999
// are geographic CRSs; everything else is written as projected.
func geoKeys(epsg int) []uint16 {
	modelType, crsKey := uint16(1), uint16(keyProjectedType)
	if epsg >= 4000 && epsg < 5000 {
		modelType, crsKey = 2, keyGeographicType
	}
	return []uint16{
		1, 1, 0, 3,
		keyModelType, 0, 1, modelType,
		keyRasterType, 0, 1, 1,
		crsKey, 0, 1, uint16(epsg),
	}
}

type tiffField struct {
	typ   uint16
	count uint64
	data  []byte
}

func (f tiffField) uints(bo binary.ByteOrder) []uint64 {
	out := make([]uint64, 0, f.count)
	for i := range int(f.count) {
		switch f.typ {
		case tiffByte:
			out = append(out, uint64(f.data[i]))
		case tiffShort:
			out = append(out, uint64(bo.Uint16(f.data[2*i:])))
		case tiffLong:
			out = append(out, uint64(bo.Uint32(f.data[4*i:])))
		}
	}
	return out
}

func (f tiffField) floats(bo binary.ByteOrder) []float64 {
	out := make([]float64, 0, f.count)
	for i := range int(f.count) {
		switch f.typ {
		case tiffDouble:
			out = append(out, math.Float64frombits(bo.Uint64(f.data[8*i:])))
		case tiffFloat:
			out = append(out, float64(math.Float32frombits(bo.Uint32(f.data[4*i:]))))
		}
	}
	return out
}

func typeSize(typ uint16) uint64 {
	switch typ {
	case 1, 2, 6, 7:
		return 1
	case 3, 8:
		return 2
	case 4, 9, 11:
		return 4
	case 5, 10, 12:
		return 8
	default:
		return 0
	}
}

// ReadGeoTIFF reads band 1 of an uncompressed, strip-organized GeoTIFF.
// Cells equal to the GDAL_NODATA value become NaN.
func ReadGeoTIFF(path string) (Grid, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, eris.Wrapf(err, "geotiff: read %s", path)
	}
	g, err := decodeTIFF(buf)
	if err != nil {
		return Grid{}, eris.Wrapf(err, "geotiff: decode %s", path)
	}
	return g, nil
}

func decodeTIFF(buf []byte) (Grid, error) {
	if len(buf) < 8 {
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "truncated header")
	}
	var bo binary.ByteOrder
	switch string(buf[:2]) {
	case "II":
		bo = binary.LittleEndian
	case "MM":
		bo = binary.BigEndian
	default:
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "not a tiff")
	}
	if bo.Uint16(buf[2:]) != 42 {
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "bigtiff or bad magic")
	}

	fields, err := readIFD(buf, bo, uint64(bo.Uint32(buf[4:])))
	if err != nil {
		return Grid{}, err
	}

	first := func(tag uint16, def uint64) uint64 {
		f, ok := fields[tag]
		if !ok {
			return def
		}
		v := f.uints(bo)
		if len(v) == 0 {
			return def
		}
		return v[0]
	}

	cols, rows := int(first(tagImageWidth, 0)), int(first(tagImageLength, 0))
	if cols == 0 || rows == 0 {
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "missing image dimensions")
	}
	if _, tiled := fields[tagTileWidth]; tiled {
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "tiled tiff")
	}
	if c := first(tagCompression, 1); c != 1 {
		return Grid{}, eris.Wrapf(model.ErrUnsupportedFormat, "compression %d", c)
	}
	if spp := first(tagSamplesPerPixel, 1); spp != 1 {
		return Grid{}, eris.Wrapf(model.ErrUnsupportedFormat, "%d samples per pixel", spp)
	}
	bits := first(tagBitsPerSample, 1)
	format := first(tagSampleFormat, sampleUint)

	offsets, counts := fields[tagStripOffsets], fields[tagStripByteCounts]
	offs, cnts := offsets.uints(bo), counts.uints(bo)
	if len(offs) == 0 || len(offs) != len(cnts) {
		return Grid{}, eris.Wrap(model.ErrUnsupportedFormat, "missing strips")
	}
	var pix []byte
	for i, o := range offs {
		end := o + cnts[i]
		if end > uint64(len(buf)) {
			return Grid{}, eris.Wrapf(model.ErrUnsupportedFormat, "strip %d out of bounds", i)
		}
		pix = append(pix, buf[o:end]...)
	}

	data, err := decodeSamples(pix, bo, rows*cols, format, bits)
	if err != nil {
		return Grid{}, err
	}

	if f, ok := fields[tagGDALNoData]; ok {
		s := strings.TrimSpace(strings.TrimRight(string(f.data), "\x00"))
		if nd, perr := strconv.ParseFloat(s, 64); perr == nil && !math.IsNaN(nd) {
			for i, v := range data {
				if v == nd {
					data[i] = math.NaN()
				}
			}
		}
	}

	g, err := FromData(rows, cols, data)
	if err != nil {
		return Grid{}, err
	}
	g.Georef = readGeoref(fields, bo)
	return g, nil
}

func readIFD(buf []byte, bo binary.ByteOrder, ifd uint64) (map[uint16]tiffField, error) {
	if ifd+2 > uint64(len(buf)) {
		return nil, eris.Wrap(model.ErrUnsupportedFormat, "ifd out of bounds")
	}
	n := uint64(bo.Uint16(buf[ifd:]))
	fields := make(map[uint16]tiffField, n)
	for i := range n {
		off := ifd + 2 + 12*i
		if off+12 > uint64(len(buf)) {
			return nil, eris.Wrap(model.ErrUnsupportedFormat, "ifd entry out of bounds")
		}
		tag := bo.Uint16(buf[off:])
		typ := bo.Uint16(buf[off+2:])
		count := uint64(bo.Uint32(buf[off+4:]))
		size := typeSize(typ) * count
		if typeSize(typ) == 0 {
			continue
		}
		var data []byte
		if size <= 4 {
			data = buf[off+8 : off+8+size]
		} else {
			vo := uint64(bo.Uint32(buf[off+8:]))
			if vo+size > uint64(len(buf)) {
				return nil, eris.Wrapf(model.ErrUnsupportedFormat, "tag %d value out of bounds", tag)
			}
			data = buf[vo : vo+size]
		}
		fields[tag] = tiffField{typ: typ, count: count, data: data}
	}
	return fields, nil
}

func decodeSamples(pix []byte, bo binary.ByteOrder, n int, format, bits uint64) ([]float64, error) {
	width := int(bits / 8)
	if width == 0 || len(pix) < n*width {
		return nil, eris.Wrapf(model.ErrUnsupportedFormat, "%d pixel bytes for %d samples of %d bits", len(pix), n, bits)
	}
	out := make([]float64, n)
	for i := range n {
		b := pix[i*width:]
		switch {
		case format == sampleFloat && bits == 32:
			out[i] = float64(math.Float32frombits(bo.Uint32(b)))
		case format == sampleFloat && bits == 64:
			out[i] = math.Float64frombits(bo.Uint64(b))
		case format == sampleUint && bits == 8:
			out[i] = float64(b[0])
		case format == sampleInt && bits == 8:
			out[i] = float64(int8(b[0]))
		case format == sampleUint && bits == 16:
			out[i] = float64(bo.Uint16(b))
		case format == sampleInt && bits == 16:
			out[i] = float64(int16(bo.Uint16(b)))
		case format == sampleUint && bits == 32:
			out[i] = float64(bo.Uint32(b))
		case format == sampleInt && bits == 32:
			out[i] = float64(int32(bo.Uint32(b)))
		default:
			return nil, eris.Wrapf(model.ErrUnsupportedFormat, "sample format %d with %d bits", format, bits)
		}
	}
	return out, nil
}

func readGeoref(fields map[uint16]tiffField, bo binary.ByteOrder) *Georef {
	scaleF, ok1 := fields[tagModelPixelScale]
	tieF, ok2 := fields[tagModelTiepoint]
	if !ok1 || !ok2 {
		return nil
	}
	scale, tie := scaleF.floats(bo), tieF.floats(bo)
	if len(scale) < 2 || len(tie) < 6 {
		return nil
	}
	t := Transform{
		OriginX:     tie[3] - tie[0]*scale[0],
		OriginY:     tie[4] + tie[1]*scale[1],
		PixelWidth:  scale[0],
		PixelHeight: scale[1],
	}
	epsg := 0
	if f, ok := fields[tagGeoKeyDirectory]; ok {
		keys := f.uints(bo)
		for i := 4; i+3 < len(keys); i += 4 {
			if (keys[i] == keyGeographicType || keys[i] == keyProjectedType) && keys[i+1] == 0 {
				epsg = int(keys[i+3])
			}
		}
	}
	return NewGeoref(t, epsg)
}
