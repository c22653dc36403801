package dashboard

import (
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/flood-cli/internal/timeseries"
)

const dateLayout = "2006-01-02"

// query is a validated view request.
type query struct {
	Variable timeseries.Variable
	Start    time.Time
	End      time.Time
}

func (q query) key() string {
	return string(q.Variable) + "|" + q.Start.Format(dateLayout) + "|" + q.End.Format(dateLayout)
}

// parseQuery reads variable, start and end. Missing dates default to the
// table's first and last day.
func parseQuery(v url.Values, t *timeseries.Table) (query, error) {
	variable, err := timeseries.ParseVariable(v.Get("variable"))
	if err != nil {
		return query{}, err
	}
	q := query{Variable: variable}
	q.Start, q.End, _ = t.Range()

	if s := v.Get("start"); s != "" {
		if q.Start, err = time.Parse(dateLayout, s); err != nil {
			return query{}, eris.Errorf("invalid start date %q, want YYYY-MM-DD", s)
		}
	}
	if s := v.Get("end"); s != "" {
		end, err := time.Parse(dateLayout, s)
		if err != nil {
			return query{}, eris.Errorf("invalid end date %q, want YYYY-MM-DD", s)
		}
		// Inclusive of the whole end day.
		q.End = end.Add(24*time.Hour - time.Nanosecond)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		return query{}, eris.Errorf("end %s is before start %s", q.End.Format(dateLayout), q.Start.Format(dateLayout))
	}
	return q, nil
}
