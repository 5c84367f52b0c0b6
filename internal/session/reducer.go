package session

import (
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Action is a state transition. Actions are applied by Reduce and never
// perform I/O.
type Action interface {
	apply(s *State)
}

// Reduce returns the state that results from applying a to s. s is not modified.
func Reduce(s State, a Action) State {
	next := s.Clone()
	a.apply(&next)
	return next
}

func errorNotice(err *core.Error) *Notice {
	return &Notice{Level: LevelError, Kind: err.Kind, Op: err.Op, Text: err.Message}
}

// --- Session state ---

// LoginSucceeded marks the session authenticated and clears the notice.
type LoginSucceeded struct{}

func (LoginSucceeded) apply(s *State) {
	s.Authenticated = true
	s.Notice = nil
}

// LoginFailed records the failure; the authenticated flag is left as it was.
type LoginFailed struct{ Err *core.Error }

func (a LoginFailed) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// RegisterSucceeded records an informational notice only.
type RegisterSucceeded struct{ Message string }

func (a RegisterSucceeded) apply(s *State) {
	s.Notice = &Notice{Level: LevelInfo, Op: OpRegister, Text: a.Message}
}

// RegisterFailed records the failure.
type RegisterFailed struct{ Err *core.Error }

func (a RegisterFailed) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// LoggedOut clears the authenticated flag.
type LoggedOut struct{}

func (LoggedOut) apply(s *State) {
	s.Authenticated = false
}

// --- File selection ---

// FileSelected replaces the selected file and clears the notice.
type FileSelected struct{ File SelectedFile }

func (a FileSelected) apply(s *State) {
	f := a.File
	s.Selected = &f
	s.Notice = nil
}

// SelectionCleared drops the selected file.
type SelectionCleared struct{}

func (SelectionCleared) apply(s *State) {
	s.Selected = nil
}

// --- Upload ---

// UploadRejected records a local refusal (no file, already busy). Pending is untouched.
type UploadRejected struct{ Err *core.Error }

func (a UploadRejected) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// UploadStarted moves idle to uploading and clears the notice.
type UploadStarted struct{}

func (UploadStarted) apply(s *State) {
	s.Pending = PendingUploading
	s.Notice = nil
}

// UploadSucceeded clears the selection and, when Current is set, replaces the
// dataset. Current is false when a newer load or upload has been issued since.
type UploadSucceeded struct {
	Detail  *core.DatasetDetail
	Current bool
}

func (a UploadSucceeded) apply(s *State) {
	s.Selected = nil
	if a.Current {
		s.Dataset = a.Detail.Clone()
	}
}

// UploadFailed records the failure; the dataset is left unchanged.
type UploadFailed struct{ Err *core.Error }

func (a UploadFailed) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// UploadFinished returns the pending operation to idle. It is dispatched on
// every exit path of an upload.
type UploadFinished struct{}

func (UploadFinished) apply(s *State) {
	s.Pending = PendingIdle
}

// --- Load ---

// DatasetLoaded replaces the dataset wholesale.
type DatasetLoaded struct{ Detail *core.DatasetDetail }

func (a DatasetLoaded) apply(s *State) {
	s.Dataset = a.Detail.Clone()
}

// LoadFailed records the failure; the dataset is left unchanged.
type LoadFailed struct{ Err *core.Error }

func (a LoadFailed) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// --- History ---

// HistoryRefreshed replaces the history cache wholesale.
type HistoryRefreshed struct{ List []core.DatasetSummary }

func (a HistoryRefreshed) apply(s *State) {
	s.History = append([]core.DatasetSummary{}, a.List...)
}

// --- Export ---

// ReportSaved records where a report was written.
type ReportSaved struct{ Path string }

func (a ReportSaved) apply(s *State) {
	s.Notice = &Notice{Level: LevelInfo, Op: OpExport, Text: "PDF saved to " + a.Path}
}

// ExportFailed records the failure.
type ExportFailed struct{ Err *core.Error }

func (a ExportFailed) apply(s *State) {
	s.Notice = errorNotice(a.Err)
}

// --- Persistence ---

// Restored replaces the whole state with a persisted snapshot. A restored
// session is never mid-upload.
type Restored struct{ State State }

func (a Restored) apply(s *State) {
	*s = a.State.Clone()
	s.Pending = PendingIdle
}
