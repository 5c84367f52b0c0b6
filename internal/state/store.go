// Package state persists the client session between invocations using
// SQLite. It keeps the orchestrator snapshot (authentication flag, latest
// notice, current dataset, history cache) and a local activity log.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/eqviz/internal/session"
)

// Activity outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Snapshot is a persisted session.
type Snapshot struct {
	Username string
	State    session.State
	SavedAt  time.Time
}

// Activity is one entry of the local activity log.
type Activity struct {
	ID      string    `json:"id" yaml:"id"`
	Op      string    `json:"op" yaml:"op"`
	Outcome string    `json:"outcome" yaml:"outcome"`
	Kind    string    `json:"kind,omitempty" yaml:"kind,omitempty"`
	Message string    `json:"message,omitempty" yaml:"message,omitempty"`
	At      time.Time `json:"at" yaml:"at"`
}

// Store is the persistence interface used by the CLI.
type Store interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	RecordActivity(ctx context.Context, a Activity) (Activity, error)
	ListActivity(ctx context.Context, limit int) ([]Activity, error)
	PruneActivity(ctx context.Context, keep int) (int64, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
