package testutil

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Operation keys understood by FakeService hooks. They match the client's
// operation names.
const (
	OpHistory  = "fetchHistory"
	OpUpload   = "uploadDataset"
	OpDetail   = "fetchDatasetDetail"
	OpReport   = "fetchReport"
	OpLogin    = "login"
	OpRegister = "register"
)

// HistoryLimit is how many datasets the fake keeps, like the real service.
const HistoryLimit = 5

// FakePDF is the body served for every report.
var FakePDF = []byte("%PDF-1.4\n% eqviz fake report\n%%EOF\n")

var requiredColumns = []string{"Equipment Name", "Type", "Flowrate", "Pressure", "Temperature"}

type failure struct {
	status  int
	message string
}

// FakeService is an in-memory implementation of the analytics service HTTP
// contract, served by httptest. Hooks force failures or hold responses so
// tests can drive ordering.
type FakeService struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int64
	datasets []*core.DatasetDetail // newest first
	users    map[string]string
	calls    map[string]int
	failures map[string]failure
	gates    map[string]chan struct{}
	history  *[]core.DatasetSummary
	now      func() time.Time
}

// NewFakeService starts a fake service and registers its shutdown with t.
func NewFakeService(t testing.TB) *FakeService {
	t.Helper()

	f := &FakeService{
		nextID:   1,
		users:    make(map[string]string),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		gates:    make(map[string]chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/datasets/history/", f.wrap(OpHistory, f.handleHistory))
		r.Post("/datasets/upload/", f.wrap(OpUpload, f.handleUpload))
		r.Get("/datasets/{id}/", f.wrap(OpDetail, f.handleDetail))
		r.Get("/datasets/{id}/generate_pdf/", f.wrap(OpReport, f.handleReport))
		r.Post("/login/", f.wrap(OpLogin, f.handleLogin))
		r.Post("/register/", f.wrap(OpRegister, f.handleRegister))
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// BaseURL returns the API root, e.g. "http://127.0.0.1:1234/api".
func (f *FakeService) BaseURL() string {
	return f.URL + "/api"
}

// Fail makes every subsequent call to op answer with status and an
// {"error": message} body. A status of 0 clears the failure.
func (f *FakeService) Fail(op string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if status == 0 {
		delete(f.failures, op)
		return
	}
	f.failures[op] = failure{status: status, message: message}
}

// Hold makes calls to op wait until the returned release function is called.
func (f *FakeService) Hold(op string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[op] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			if f.gates[op] == gate {
				delete(f.gates, op)
			}
			f.mu.Unlock()
			close(gate)
		})
	}
}

// SetHistory overrides the history response with list.
func (f *FakeService) SetHistory(list []core.DatasetSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]core.DatasetSummary(nil), list...)
	f.history = &cp
}

// AddUser registers a user directly.
func (f *FakeService) AddUser(username, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[username] = password
}

// Seed stores a dataset as if it had been uploaded and returns it.
func (f *FakeService) Seed(filename, csvBody string) (*core.DatasetDetail, error) {
	detail, err := analyze(filename, strings.NewReader(csvBody))
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store(detail)
	return detail.Clone(), nil
}

// Calls returns how many requests reached op.
func (f *FakeService) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of requests across all operations.
func (f *FakeService) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeService) wrap(op string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[op]++
		fail, failing := f.failures[op]
		gate := f.gates[op]
		f.mu.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, fail.status, map[string]string{"error": fail.message})
			return
		}
		h(w, r)
	}
}

func (f *FakeService) store(detail *core.DatasetDetail) {
	detail.ID = f.nextID
	f.nextID++
	detail.UploadedAt = core.NewTimestamp(f.now())
	f.datasets = append([]*core.DatasetDetail{detail}, f.datasets...)
	if len(f.datasets) > HistoryLimit {
		f.datasets = f.datasets[:HistoryLimit]
	}
}

func (f *FakeService) find(idParam string) *core.DatasetDetail {
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return nil
	}
	for _, d := range f.datasets {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (f *FakeService) handleHistory(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.history != nil {
		writeJSON(w, http.StatusOK, *f.history)
		return
	}
	list := make([]core.DatasetSummary, 0, len(f.datasets))
	for _, d := range f.datasets {
		list = append(list, d.Summary())
	}
	writeJSON(w, http.StatusOK, list)
}

func (f *FakeService) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer func() { _ = file.Close() }()

	if !strings.HasSuffix(header.Filename, ".csv") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File must be a CSV"})
		return
	}

	detail, err := analyze(header.Filename, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	f.mu.Lock()
	f.store(detail)
	out := detail.Clone()
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (f *FakeService) handleDetail(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	d := f.find(chi.URLParam(r, "id"))
	var out *core.DatasetDetail
	if d != nil {
		out = d.Clone()
	}
	f.mu.Unlock()

	if out == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *FakeService) handleReport(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	d := f.find(chi.URLParam(r, "id"))
	f.mu.Unlock()

	if d == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.ReportFilename(d.ID)))
	_, _ = w.Write(FakePDF)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *http.Request) (credentials, bool) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, false
	}
	return c, c.Username != "" && c.Password != ""
}

func (f *FakeService) handleLogin(w http.ResponseWriter, r *http.Request) {
	c, _ := decodeCredentials(r)

	f.mu.Lock()
	pw, ok := f.users[c.Username]
	f.mu.Unlock()

	if !ok || pw != c.Password || c.Password == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "fake-" + c.Username, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful", "username": c.Username})
}

func (f *FakeService) handleRegister(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCredentials(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username and password required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[c.Username]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Username already exists"})
		return
	}
	f.users[c.Username] = c.Password
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully", "username": c.Username})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// analyze computes a dataset detail from an equipment CSV the way the
// analytics service does: averages over all rows, and type counts ordered by
// descending count with ties in first-seen order.
func analyze(filename string, r io.Reader) (*core.DatasetDetail, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV must contain columns: %s", strings.Join(requiredColumns, ", "))
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("CSV must contain columns: %s", strings.Join(requiredColumns, ", "))
		}
	}

	detail := &core.DatasetDetail{}
	detail.Filename = filename

	counts := map[string]int{}
	var order []string
	var sumF, sumP, sumT float64

	for i, rec := range records[1:] {
		row := core.EquipmentRow{
			ID:   int64(i + 1),
			Name: rec[col["Equipment Name"]],
			Type: rec[col["Type"]],
		}
		for _, field := range []struct {
			name string
			dst  *float64
		}{
			{"Flowrate", &row.Flowrate},
			{"Pressure", &row.Pressure},
			{"Temperature", &row.Temperature},
		} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[field.name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid %s: %w", i+1, field.name, err)
			}
			*field.dst = v
		}

		if _, seen := counts[row.Type]; !seen {
			order = append(order, row.Type)
		}
		counts[row.Type]++
		sumF += row.Flowrate
		sumP += row.Pressure
		sumT += row.Temperature
		detail.Equipment = append(detail.Equipment, row)
	}

	n := len(detail.Equipment)
	detail.TotalCount = n
	if n > 0 {
		detail.AvgFlowrate = sumF / float64(n)
		detail.AvgPressure = sumP / float64(n)
		detail.AvgTemperature = sumT / float64(n)
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	entries := make([]core.TypeCount, 0, len(order))
	for _, typ := range order {
		entries = append(entries, core.TypeCount{Type: typ, Count: counts[typ]})
	}
	dist, err := core.NewTypeDistribution(entries...)
	if err != nil {
		return nil, err
	}
	detail.TypeDistribution = dist
	return detail, nil
}

// SampleCSV is a small valid equipment file.
const SampleCSV = `Equipment Name,Type,Flowrate,Pressure,Temperature
Pump-1,Pump,120.5,5.2,110
Valve-1,Valve,60,4.1,105
Pump-2,Pump,130,5.5,115
HX-1,HeatExchanger,150,6.2,130
`
