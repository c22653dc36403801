package dashboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/flood-cli/internal/location"
	"github.com/sells-group/flood-cli/internal/timeseries"
)

// Canvas sizes in SVG user units.
const (
	chartW, chartH = 760, 300
	mapW, mapH     = 760, 420
	margin         = 48
)

// Fallback map center when no locations are loaded (Kampala).
const (
	PlaceholderLat = 0.34
	PlaceholderLon = 32.58
)

type marker struct {
	X, Y  float64
	R     float64
	Title string
}

type tick struct {
	Pos   float64
	Label string
}

// lineChart is the template model of the time-series plot.
type lineChart struct {
	Title    string
	Width    int
	Height   int
	Polyline string
	Markers  []marker
	XTicks   []tick
	YTicks   []tick
	Empty    bool
}

// mapView is the template model of the location map.
type mapView struct {
	Width       int
	Height      int
	Markers     []marker
	Placeholder bool
	CenterLat   float64
	CenterLon   float64
	Extent      location.Extent
}

func buildChart(v timeseries.Variable, pts []timeseries.Point) lineChart {
	c := lineChart{Title: v.Title(), Width: chartW, Height: chartH}
	if len(pts) == 0 {
		c.Empty = true
		return c
	}

	t0 := float64(pts[0].Date.Unix())
	t1 := float64(pts[len(pts)-1].Date.Unix())
	lo, hi := pts[0].Value, pts[0].Value
	for _, p := range pts {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	lo = math.Min(lo, 0)
	if hi == lo {
		hi = lo + 1
	}

	xs := func(t float64) float64 {
		if t1 == t0 {
			return chartW / 2
		}
		return margin + (t-t0)/(t1-t0)*(chartW-2*margin)
	}
	ys := func(v float64) float64 {
		return chartH - margin - (v-lo)/(hi-lo)*(chartH-2*margin)
	}

	var sb strings.Builder
	for i, p := range pts {
		x, y := xs(float64(p.Date.Unix())), ys(p.Value)
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
		c.Markers = append(c.Markers, marker{
			X: x, Y: y, R: 3,
			Title: fmt.Sprintf("%s: %s", p.Date.Format(dateLayout), strconv.FormatFloat(p.Value, 'f', -1, 64)),
		})
	}
	c.Polyline = sb.String()

	for _, i := range tickIndexes(len(pts), 6) {
		c.XTicks = append(c.XTicks, tick{Pos: xs(float64(pts[i].Date.Unix())), Label: pts[i].Date.Format(dateLayout)})
	}
	for i := 0; i <= 4; i++ {
		v := lo + (hi-lo)*float64(i)/4
		c.YTicks = append(c.YTicks, tick{Pos: ys(v), Label: strconv.FormatFloat(v, 'g', 4, 64)})
	}
	return c
}

// tickIndexes picks at most n evenly spaced indexes out of [0, count).
func tickIndexes(count, n int) []int {
	if count <= n {
		out := make([]int, count)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, i*(count-1)/(n-1))
	}
	return out
}

func buildMap(c *location.Collection) mapView {
	m := mapView{Width: mapW, Height: mapH, CenterLat: PlaceholderLat, CenterLon: PlaceholderLon}
	ext, ok := c.Extent(0.05)
	if !ok {
		m.Placeholder = true
		return m
	}
	m.Extent = ext
	m.CenterLon, m.CenterLat = ext.Center()

	lonSpan := ext.MaxLon - ext.MinLon
	latSpan := ext.MaxLat - ext.MinLat
	maxRisk := 0.0
	for _, f := range c.Features {
		maxRisk = math.Max(maxRisk, f.RiskScore)
	}
	for _, f := range c.Features {
		lon, lat := f.Point()
		x, y := float64(mapW)/2, float64(mapH)/2
		if lonSpan > 0 {
			x = margin + (lon-ext.MinLon)/lonSpan*(mapW-2*margin)
		}
		if latSpan > 0 {
			y = mapH - margin - (lat-ext.MinLat)/latSpan*(mapH-2*margin)
		}
		r := 6.0
		if maxRisk > 0 {
			r = 4 + 16*math.Max(f.RiskScore, 0)/maxRisk
		}
		m.Markers = append(m.Markers, marker{
			X: x, Y: y, R: r,
			Title: fmt.Sprintf("%s\nrisk_score: %s", f.Name, strconv.FormatFloat(f.RiskScore, 'f', -1, 64)),
		})
	}
	return m
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
