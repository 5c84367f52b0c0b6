package commands

import (
	"strconv"

	"github.com/leapstack-labs/eqviz/internal/cli/output"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/viewmodel"
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Decimals used for averages in text output.
const avgDecimals = 2

var historyColumns = []string{"ID", "Filename", "Uploaded", "Count", "Avg Flowrate", "Avg Pressure", "Avg Temperature"}

// renderDashboard prints the summary cards, distribution and (optionally)
// the equipment table of d.
func renderDashboard(r *output.Renderer, d *core.DatasetDetail, withEquipment bool) error {
	db := viewmodel.Build(d, withEquipment)
	if handled, err := r.Data(db); handled {
		return err
	}
	if db == nil {
		r.Muted("No dataset loaded. Run 'eqviz upload FILE' or 'eqviz load ID'.")
		return nil
	}

	r.Header(1, db.Filename)
	r.KeyValue("Dataset", strconv.FormatInt(db.DatasetID, 10))
	r.KeyValue("Uploaded", db.UploadedAt.Short())
	for _, c := range db.Cards {
		r.KeyValue(c.Label, formatCard(r, c))
	}
	r.Println()

	r.Header(2, db.Types.Title)
	rows := make([][]any, 0, db.Types.Len())
	total := db.Types.Sum()
	for i, label := range db.Types.Labels {
		v := db.Types.Values[i]
		rows = append(rows, []any{label, r.Number(v, 0), output.Percent(v, total)})
	}
	r.Table([]string{"Type", "Count", "Share"}, rows)

	if withEquipment {
		r.Header(2, "Equipment")
		eq := make([][]any, 0, len(db.Equipment))
		for _, e := range db.Equipment {
			eq = append(eq, []any{e.Name, e.Type, r.Number(e.Flowrate, avgDecimals), r.Number(e.Pressure, avgDecimals), r.Number(e.Temperature, avgDecimals)})
		}
		r.Table(viewmodel.EquipmentColumns, eq)
	}
	return nil
}

func formatCard(r *output.Renderer, c viewmodel.Card) string {
	if c.Integer {
		return r.Number(c.Value, 0)
	}
	return r.Number(c.Value, avgDecimals)
}

// renderCharts prints both chart view-models as bars.
func renderCharts(r *output.Renderer, d *core.DatasetDetail) error {
	types := viewmodel.TypeDistributionChart(d)
	params := viewmodel.ParameterAverageChart(d)
	if handled, err := r.Data(map[string]*viewmodel.CategorySeries{
		"types":      types,
		"parameters": params,
	}); handled {
		return err
	}
	if d == nil {
		r.Muted("No dataset loaded.")
		return nil
	}
	r.BarChart(types.Title, types.Labels, types.Values, 0)
	r.BarChart(params.Title, params.Labels, params.Values, avgDecimals)
	return nil
}

// renderHistory prints the history cache, most recent first.
func renderHistory(r *output.Renderer, list []core.DatasetSummary) error {
	if list == nil {
		list = []core.DatasetSummary{}
	}
	if handled, err := r.Data(list); handled {
		return err
	}
	r.Header(1, "Upload history")
	rows := make([][]any, 0, len(list))
	for _, s := range list {
		rows = append(rows, []any{
			s.ID,
			s.Filename,
			s.UploadedAt.Short(),
			r.Count(s.TotalCount),
			r.Number(s.AvgFlowrate, avgDecimals),
			r.Number(s.AvgPressure, avgDecimals),
			r.Number(s.AvgTemperature, avgDecimals),
		})
	}
	r.Table(historyColumns, rows)
	return nil
}

// renderNotice prints n as success/info or error.
func renderNotice(r *output.Renderer, n *session.Notice) {
	switch {
	case n == nil:
	case n.IsError():
		r.Error(n.Text)
	default:
		r.Success(n.Text)
	}
}

// statusView is the structured form of `eqviz status`.
type statusView struct {
	Authenticated bool            `json:"authenticated" yaml:"authenticated"`
	Username      string          `json:"username,omitempty" yaml:"username,omitempty"`
	Pending       session.Pending `json:"pending" yaml:"pending"`
	DatasetID     int64           `json:"dataset_id,omitempty" yaml:"dataset_id,omitempty"`
	Filename      string          `json:"filename,omitempty" yaml:"filename,omitempty"`
	HistorySize   int             `json:"history_size" yaml:"history_size"`
	Notice        *session.Notice `json:"notice,omitempty" yaml:"notice,omitempty"`
}

func newStatusView(username string, s session.State) statusView {
	v := statusView{
		Authenticated: s.Authenticated,
		Username:      username,
		Pending:       s.Pending,
		HistorySize:   len(s.History),
		Notice:        s.Notice,
	}
	if s.Dataset != nil {
		v.DatasetID = s.Dataset.ID
		v.Filename = s.Dataset.Filename
	}
	return v
}

func renderStatus(r *output.Renderer, v statusView) error {
	if handled, err := r.Data(v); handled {
		return err
	}
	r.Header(1, "Session")
	auth := "no"
	if v.Authenticated {
		auth = "yes"
		if v.Username != "" {
			auth += " (" + v.Username + ")"
		}
	}
	r.KeyValue("Authenticated", auth)
	r.KeyValue("Pending", string(v.Pending))
	if v.DatasetID != 0 {
		r.KeyValue("Current dataset", strconv.FormatInt(v.DatasetID, 10)+" "+v.Filename)
	} else {
		r.KeyValue("Current dataset", "none")
	}
	r.KeyValue("History entries", strconv.Itoa(v.HistorySize))
	if v.Notice != nil {
		level := "info"
		if v.Notice.IsError() {
			level = "error"
		}
		r.KeyValue("Latest notice", "["+level+"] "+v.Notice.Text)
	}
	return nil
}
