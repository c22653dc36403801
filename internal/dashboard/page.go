package dashboard

import (
	"bytes"
	"html/template"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/timeseries"
)

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"f1": fmtFloat,
}).Parse(pageHTML))

type pageModel struct {
	Variable  string
	Variables []timeseries.Variable
	Start     string
	End       string
	MinDate   string
	MaxDate   string
	Records   int
	Chart     lineChart
	Map       mapView
}

func renderPage(m pageModel) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, m); err != nil {
		return nil, eris.Wrap(err, "dashboard: render page")
	}
	return buf.Bytes(), nil
}

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Flood Dashboard</title>
<style>
body { font-family: sans-serif; margin: 24px; color: #222; }
form { margin-bottom: 16px; }
svg { border: 1px solid #ddd; background: #fafafa; }
.line { fill: none; stroke: #1f77b4; stroke-width: 2; }
.pt { fill: #1f77b4; }
.loc { fill: #d62728; fill-opacity: 0.6; stroke: #7f1d1d; }
.axis { stroke: #999; }
.tick { font-size: 10px; fill: #555; }
.note { font-size: 14px; fill: #666; }
</style>
</head>
<body>
<h1>Flood Dashboard</h1>
<form method="get" action="/">
  <label>Variable
    <select name="variable">
      {{range .Variables}}<option value="{{.}}"{{if eq (print .) $.Variable}} selected{{end}}>{{.Title}}</option>{{end}}
    </select>
  </label>
  <label>From <input type="date" name="start" value="{{.Start}}" min="{{.MinDate}}" max="{{.MaxDate}}"></label>
  <label>To <input type="date" name="end" value="{{.End}}" min="{{.MinDate}}" max="{{.MaxDate}}"></label>
  <button type="submit">Update</button>
</form>

<h2>{{.Chart.Title}}</h2>
<svg id="chart" width="{{.Chart.Width}}" height="{{.Chart.Height}}" viewBox="0 0 {{.Chart.Width}} {{.Chart.Height}}">
{{- if .Chart.Empty}}
  <text class="note" x="50%" y="50%" text-anchor="middle">No data in the selected range</text>
{{- else}}
  {{range .Chart.YTicks}}<line class="axis" x1="48" x2="{{$.Chart.Width}}" y1="{{f1 .Pos}}" y2="{{f1 .Pos}}" stroke-dasharray="2,4"/><text class="tick" x="4" y="{{f1 .Pos}}">{{.Label}}</text>
  {{end}}
  {{range .Chart.XTicks}}<text class="tick" x="{{f1 .Pos}}" y="{{$.Chart.Height}}" dy="-8" text-anchor="middle">{{.Label}}</text>
  {{end}}
  <polyline class="line" points="{{.Chart.Polyline}}"/>
  {{range .Chart.Markers}}<circle class="pt" cx="{{f1 .X}}" cy="{{f1 .Y}}" r="{{f1 .R}}"><title>{{.Title}}</title></circle>
  {{end}}
{{- end}}
</svg>
<p>{{.Records}} records</p>

<h2>Flood-prone locations</h2>
<svg id="map" width="{{.Map.Width}}" height="{{.Map.Height}}" viewBox="0 0 {{.Map.Width}} {{.Map.Height}}">
{{- if .Map.Placeholder}}
  <text class="note" x="50%" y="50%" text-anchor="middle">No locations loaded. Map centered on {{.Map.CenterLat}}, {{.Map.CenterLon}}</text>
{{- else}}
  {{range .Map.Markers}}<circle class="loc" cx="{{f1 .X}}" cy="{{f1 .Y}}" r="{{f1 .R}}"><title>{{.Title}}</title></circle>
  {{end}}
{{- end}}
</svg>
</body>
</html>
`
