package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"math"
	"slices"
	"strconv"
	"time"

	"climalog/internal/modules/readings/types"
)

//go:embed templates/*.html
var viewsFS embed.FS

var chartTmpl *template.Template

// loadTemplatesFromFS loads templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	chartTmpl, err = template.ParseFS(sub, "*.html")
	return err
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// CurrentReading is the newest reading, preformatted for display.
type CurrentReading struct {
	Temp       string
	RH         string
	MeasuredAt string
}

// ChartData is the view model for the chart page. Series run oldest to newest.
type ChartData struct {
	Current *CurrentReading
	Labels  []string
	Temps   []*float64
	RHs     []*float64
}

// NewChartData builds the view model from readings ordered newest first.
func NewChartData(readings []types.Reading, loc *time.Location) ChartData {
	if loc == nil {
		loc = time.UTC
	}
	data := ChartData{
		Labels: make([]string, 0, len(readings)),
		Temps:  make([]*float64, 0, len(readings)),
		RHs:    make([]*float64, 0, len(readings)),
	}
	if len(readings) == 0 {
		return data
	}

	newest := readings[0]
	data.Current = &CurrentReading{
		Temp:       formatValue(newest.Temp),
		RH:         formatValue(newest.RH),
		MeasuredAt: epochTime(newest.Time, loc).Format(time.RFC1123),
	}

	for _, r := range slices.Backward(readings) {
		data.Labels = append(data.Labels, epochTime(r.Time, loc).Format("15:04"))
		data.Temps = append(data.Temps, r.Temp)
		data.RHs = append(data.RHs, r.RH)
	}
	return data
}

func RenderChart(w io.Writer, data ChartData) error {
	if chartTmpl == nil {
		return errors.New("chart template not loaded: call views.LoadTemplates during startup")
	}
	return chartTmpl.ExecuteTemplate(w, "chart.html", data)
}

func epochTime(sec float64, loc *time.Location) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).In(loc)
}

func formatValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
