package raster

// Mask is a binary rows×cols layer: 1 where a condition holds, 0 elsewhere.
type Mask struct {
	Rows   int
	Cols   int
	Data   []uint8
	Georef *Georef
}

// NewMask returns an all-zero mask.
func NewMask(rows, cols int) Mask {
	return Mask{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// At returns the mask value at row r, column c.
func (m Mask) At(r, c int) uint8 {
	return m.Data[r*m.Cols+c]
}

// Count returns the number of set cells.
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Fraction returns the share of set cells in [0,1].
func (m Mask) Fraction() float64 {
	if len(m.Data) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Data))
}

// Grid converts the mask to a float grid of 0/1 values.
func (m Mask) Grid() Grid {
	g := New(m.Rows, m.Cols)
	d := g.Data()
	for i, v := range m.Data {
		d[i] = float64(v)
	}
	g.Georef = m.Georef
	return g
}
