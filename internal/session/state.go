// Package session is the dataset session orchestrator: it owns the client's
// state (authentication flag, history cache, current dataset, pending upload,
// latest notice) and the asynchronous operations that change it.
//
// State changes go through Reduce so that network side effects, which live in
// Orchestrator, stay separate from the transitions themselves.
package session

import (
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Pending is the orchestrator's busy flag. Only uploads model a busy state.
type Pending string

// Pending operation values.
const (
	PendingIdle      Pending = "idle"
	PendingUploading Pending = "uploading"
)

// NoticeLevel separates informational notices from errors.
type NoticeLevel string

// Notice levels.
const (
	LevelInfo  NoticeLevel = "info"
	LevelError NoticeLevel = "error"
)

// Notice is the single latest-message slot. A new notice overwrites the old one.
type Notice struct {
	Level NoticeLevel    `json:"level"`
	Kind  core.ErrorKind `json:"kind,omitempty"`
	Op    string         `json:"op,omitempty"`
	Text  string         `json:"text"`
}

// IsError reports whether the notice describes a failure.
func (n *Notice) IsError() bool {
	return n != nil && n.Level == LevelError
}

// SelectedFile is the file chosen for the next upload.
type SelectedFile struct {
	Name string
	Data []byte
}

// State is everything the orchestrator knows. Values returned to callers are
// deep copies.
type State struct {
	Authenticated bool
	Notice        *Notice
	Pending       Pending
	Selected      *SelectedFile
	Dataset       *core.DatasetDetail
	History       []core.DatasetSummary
}

// NewState returns the initial state.
func NewState() State {
	return State{Pending: PendingIdle}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	if s.Notice != nil {
		n := *s.Notice
		out.Notice = &n
	}
	if s.Selected != nil {
		sel := SelectedFile{Name: s.Selected.Name}
		if s.Selected.Data != nil {
			sel.Data = make([]byte, len(s.Selected.Data))
			copy(sel.Data, s.Selected.Data)
		}
		out.Selected = &sel
	}
	out.Dataset = s.Dataset.Clone()
	if s.History != nil {
		out.History = make([]core.DatasetSummary, len(s.History))
		copy(out.History, s.History)
	}
	return out
}

// Busy reports whether an upload is in flight.
func (s State) Busy() bool {
	return s.Pending != PendingIdle
}
