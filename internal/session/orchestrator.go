package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/eqviz/internal/notifier"
	"github.com/leapstack-labs/eqviz/internal/report"
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Operation names used in notices and events.
const (
	OpLogin    = "login"
	OpRegister = "register"
	OpLogout   = "logout"
	OpUpload   = "uploadAndAnalyze"
	OpLoad     = "load"
	OpRefresh  = "refreshHistory"
	OpExport   = "exportReport"
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid credentials"
	MsgRegistered         = "Registration successful; please login"
	MsgRegisterFailed     = "Registration failed"
	MsgSelectFile         = "Please select a file"
	MsgUploadBusy         = "Upload already in progress"
	MsgUploadFailed       = "Error uploading file"
	MsgLoadFailed         = "Error loading dataset"
	MsgNoData             = "No data to generate report"
)

// ErrSuperseded is returned when a result arrived after a newer request for
// the same slot was issued. The result was dropped.
var ErrSuperseded = errors.New("result superseded by a newer request")

// Transport is the analytics service as seen by the orchestrator.
// *client.Client implements it.
type Transport interface {
	FetchHistory(ctx context.Context) ([]core.DatasetSummary, error)
	UploadDataset(ctx context.Context, filename string, data []byte) (*core.DatasetDetail, error)
	FetchDatasetDetail(ctx context.Context, id int64) (*core.DatasetDetail, error)
	FetchReport(ctx context.Context, id int64) ([]byte, error)
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

// Event describes one finished operation. Err is nil on success.
type Event struct {
	Op      string
	Err     error
	Message string
	At      time.Time
}

// Observer receives an Event after every operation. It is called outside the
// orchestrator's lock and must not block for long.
type Observer func(Event)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers an observer for finished operations.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithState seeds the orchestrator with a previously persisted state.
func WithState(s State) Option {
	return func(o *Orchestrator) {
		o.state = Reduce(o.state, Restored{State: s})
	}
}

// Orchestrator owns the session state and runs the operations that change it.
// It is safe for concurrent use; results of superseded requests are dropped
// using one sequence counter per slot (dataset, history).
type Orchestrator struct {
	transport Transport
	exporter  *report.Exporter
	logger    *slog.Logger
	notifier  *notifier.Notifier
	observers []Observer

	mu         sync.Mutex
	state      State
	datasetSeq uint64
	historySeq uint64
}

// New creates an orchestrator in the initial state.
func New(transport Transport, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		transport: transport,
		logger:    slog.New(slog.DiscardHandler),
		notifier:  notifier.New(),
		state:     NewState(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.exporter = report.NewExporter(transport, o.logger)
	return o
}

// Start performs the startup history refresh. Failures are logged only.
func (o *Orchestrator) Start(ctx context.Context) {
	_ = o.RefreshHistory(ctx)
}

// Close releases event subscribers.
func (o *Orchestrator) Close() {
	o.notifier.Close()
}

// Subscribe returns a channel that receives a revision number after every
// state change, and a cancel function.
func (o *Orchestrator) Subscribe() (<-chan uint64, func()) {
	return o.notifier.Subscribe()
}

// --- state access ---

// Snapshot returns a deep copy of the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Restore replaces the state with s. The result is never busy.
func (o *Orchestrator) Restore(s State) {
	o.dispatch(Restored{State: s})
}

// Authenticated reports the authenticated flag.
func (o *Orchestrator) Authenticated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Authenticated
}

// History returns the cached history, most recent first.
func (o *Orchestrator) History() []core.DatasetSummary {
	return o.Snapshot().History
}

// Current returns the current dataset, or nil.
func (o *Orchestrator) Current() *core.DatasetDetail {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Dataset.Clone()
}

// Pending returns the pending operation.
func (o *Orchestrator) Pending() Pending {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Pending
}

// Notice returns the latest notice, or nil.
func (o *Orchestrator) Notice() *Notice {
	return o.Snapshot().Notice
}

// --- session ---

// Login authenticates against the service. Every failure is reported as
// "Invalid credentials"; the returned error keeps the underlying kind.
func (o *Orchestrator) Login(ctx context.Context, username, password string) error {
	if err := o.transport.Login(ctx, username, password); err != nil {
		e := failure(err, OpLogin, MsgInvalidCredentials)
		o.dispatch(LoginFailed{Err: e})
		o.logger.Debug("login failed", "user", username, "kind", e.Kind, "error", err)
		o.observe(OpLogin, e, e.Message)
		return e
	}

	o.dispatch(LoginSucceeded{})
	o.logger.Info("logged in", "user", username)
	o.observe(OpLogin, nil, "")
	return nil
}

// Register creates an account. It never authenticates.
func (o *Orchestrator) Register(ctx context.Context, username, password string) error {
	if err := o.transport.Register(ctx, username, password); err != nil {
		e := failure(err, OpRegister, core.MessageOf(err, MsgRegisterFailed))
		o.dispatch(RegisterFailed{Err: e})
		o.observe(OpRegister, e, e.Message)
		return e
	}

	o.dispatch(RegisterSucceeded{Message: MsgRegistered})
	o.observe(OpRegister, nil, MsgRegistered)
	return nil
}

// Logout clears the authenticated flag.
func (o *Orchestrator) Logout() {
	o.dispatch(LoggedOut{})
	o.observe(OpLogout, nil, "")
}

// --- dataset ---

// SelectFile sets the file for the next upload.
func (o *Orchestrator) SelectFile(name string, data []byte) {
	o.dispatch(FileSelected{File: SelectedFile{Name: name, Data: data}})
}

// ClearSelection drops the selected file.
func (o *Orchestrator) ClearSelection() {
	o.dispatch(SelectionCleared{})
}

// UploadAndAnalyze uploads the selected file. Without a selection it fails
// with "Please select a file" before any network call; while another upload
// is running it fails with a busy error. On success the dataset is replaced
// (unless a newer load was issued meanwhile), the selection is cleared and
// the history is refreshed.
func (o *Orchestrator) UploadAndAnalyze(ctx context.Context) (*core.DatasetDetail, error) {
	return o.startUpload(ctx, nil)
}

// UploadFile selects name and uploads it in one step. The busy check, the
// selection and the move to uploading happen under one lock, so concurrent
// callers never upload each other's file: a call made while another upload
// is running fails with a busy error and leaves the selection alone.
func (o *Orchestrator) UploadFile(ctx context.Context, name string, data []byte) (*core.DatasetDetail, error) {
	return o.startUpload(ctx, &SelectedFile{Name: name, Data: data})
}

func (o *Orchestrator) startUpload(ctx context.Context, file *SelectedFile) (*core.DatasetDetail, error) {
	o.mu.Lock()
	var rejected *core.Error
	switch {
	case file == nil && o.state.Selected == nil, file != nil && file.Name == "":
		rejected = core.NewError(core.KindValidation, OpUpload, MsgSelectFile, nil)
	case o.state.Busy():
		rejected = core.NewError(core.KindBusy, OpUpload, MsgUploadBusy, nil)
	}
	if rejected != nil {
		o.state = Reduce(o.state, UploadRejected{Err: rejected})
		o.mu.Unlock()
		o.changed()
		o.observe(OpUpload, rejected, rejected.Message)
		return nil, rejected
	}

	if file != nil {
		o.state = Reduce(o.state, FileSelected{File: *file})
	}
	sel := *o.state.Selected
	o.state = Reduce(o.state, UploadStarted{})
	o.datasetSeq++
	seq := o.datasetSeq
	o.mu.Unlock()
	o.changed()

	detail, err := o.upload(ctx, sel, seq)
	if err != nil {
		o.observe(OpUpload, err, core.MessageOf(err, MsgUploadFailed))
		return nil, err
	}
	o.observe(OpUpload, nil, detail.Filename)

	_ = o.RefreshHistory(ctx)
	return detail, nil
}

// upload runs the network call. Pending returns to idle on every exit path,
// including a panicking transport.
func (o *Orchestrator) upload(ctx context.Context, sel SelectedFile, seq uint64) (*core.DatasetDetail, error) {
	defer o.dispatch(UploadFinished{})

	o.logger.Debug("uploading dataset", "file", sel.Name, "bytes", len(sel.Data), "seq", seq)
	detail, err := o.transport.UploadDataset(ctx, sel.Name, sel.Data)
	if err != nil {
		e := failure(err, OpUpload, core.MessageOf(err, MsgUploadFailed))
		o.dispatch(UploadFailed{Err: e})
		o.logger.Debug("upload failed", "file", sel.Name, "kind", e.Kind, "error", err)
		return nil, e
	}

	o.mu.Lock()
	current := seq == o.datasetSeq
	o.state = Reduce(o.state, UploadSucceeded{Detail: detail, Current: current})
	o.mu.Unlock()
	o.changed()

	if !current {
		o.logger.Debug("upload result superseded", "dataset_id", detail.ID, "seq", seq)
	}
	o.logger.Info("dataset uploaded", "dataset_id", detail.ID, "file", detail.Filename, "rows", detail.TotalCount)
	return detail, nil
}

// Load fetches dataset id and makes it current. On failure the current
// dataset is unchanged and "Error loading dataset" is recorded. A result that
// arrives after a newer load or upload was issued is dropped and
// ErrSuperseded is returned.
func (o *Orchestrator) Load(ctx context.Context, id int64) error {
	if id <= 0 {
		e := core.NewError(core.KindValidation, OpLoad, MsgLoadFailed, nil)
		o.dispatch(LoadFailed{Err: e})
		o.observe(OpLoad, e, e.Message)
		return e
	}

	o.mu.Lock()
	o.datasetSeq++
	seq := o.datasetSeq
	o.mu.Unlock()

	detail, err := o.transport.FetchDatasetDetail(ctx, id)

	o.mu.Lock()
	if seq != o.datasetSeq {
		o.mu.Unlock()
		o.logger.Debug("load result superseded", "dataset_id", id, "seq", seq, "error", err)
		return ErrSuperseded
	}
	if err != nil {
		e := failure(err, OpLoad, MsgLoadFailed)
		o.state = Reduce(o.state, LoadFailed{Err: e})
		o.mu.Unlock()
		o.changed()
		o.logger.Debug("load failed", "dataset_id", id, "kind", e.Kind, "error", err)
		o.observe(OpLoad, e, e.Message)
		return e
	}
	o.state = Reduce(o.state, DatasetLoaded{Detail: detail})
	o.mu.Unlock()
	o.changed()

	o.observe(OpLoad, nil, detail.Filename)
	return nil
}

// --- history ---

// RefreshHistory replaces the history cache with the server's list. Failures
// leave the cache untouched, are logged at Warn and never recorded as a
// notice; the error is still returned for callers that want to show it.
func (o *Orchestrator) RefreshHistory(ctx context.Context) error {
	o.mu.Lock()
	o.historySeq++
	seq := o.historySeq
	o.mu.Unlock()

	list, err := o.transport.FetchHistory(ctx)
	if err != nil {
		o.logger.Warn("history refresh failed", "error", err)
		return err
	}

	o.mu.Lock()
	if seq != o.historySeq {
		o.mu.Unlock()
		o.logger.Debug("history result superseded", "seq", seq)
		return ErrSuperseded
	}
	o.state = Reduce(o.state, HistoryRefreshed{List: list})
	o.mu.Unlock()
	o.changed()

	o.logger.Debug("history refreshed", "entries", len(list))
	return nil
}

// --- export ---

// Export downloads the report of dataset id and hands it to saver. It has no
// busy gating and does not touch the dataset or history.
func (o *Orchestrator) Export(ctx context.Context, id int64, saver report.Saver) (string, error) {
	path, err := o.exporter.Export(ctx, id, saver)
	if err != nil {
		e := failure(err, OpExport, report.FailureMessage)
		o.dispatch(ExportFailed{Err: e})
		o.observe(OpExport, e, e.Message)
		return "", e
	}

	o.dispatch(ReportSaved{Path: path})
	o.observe(OpExport, nil, path)
	return path, nil
}

// ExportCurrent exports the current dataset.
func (o *Orchestrator) ExportCurrent(ctx context.Context, saver report.Saver) (string, error) {
	o.mu.Lock()
	var id int64
	if o.state.Dataset != nil {
		id = o.state.Dataset.ID
	}
	o.mu.Unlock()

	if id == 0 {
		e := core.NewError(core.KindValidation, OpExport, MsgNoData, nil)
		o.dispatch(ExportFailed{Err: e})
		o.observe(OpExport, e, e.Message)
		return "", e
	}
	return o.Export(ctx, id, saver)
}

// --- plumbing ---

func (o *Orchestrator) dispatch(a Action) {
	o.mu.Lock()
	o.state = Reduce(o.state, a)
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) changed() {
	o.notifier.Publish()
}

func (o *Orchestrator) observe(op string, err error, message string) {
	if len(o.observers) == 0 {
		return
	}
	ev := Event{Op: op, Err: err, Message: message, At: time.Now().UTC()}
	for _, obs := range o.observers {
		obs(ev)
	}
}

// failure wraps err as a *core.Error for op with the given user message,
// keeping the cause's kind and status. Untyped causes count as network errors.
func failure(err error, op, message string) *core.Error {
	e := &core.Error{Kind: core.KindNetwork, Op: op, Message: message, Err: err}
	var cause *core.Error
	if errors.As(err, &cause) {
		e.Kind = cause.Kind
		e.Status = cause.Status
	}
	return e
}
