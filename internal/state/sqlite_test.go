package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenAndMigrate(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleDetail(t *testing.T) *core.DatasetDetail {
	t.Helper()
	return &core.DatasetDetail{
		DatasetSummary: core.DatasetSummary{
			ID:          7,
			Filename:    "plant.csv",
			UploadedAt:  core.NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)),
			TotalCount:  3,
			AvgFlowrate: 100.5,
		},
		TypeDistribution: core.MustTypeDistribution(
			core.TypeCount{Type: "Valve", Count: 1},
			core.TypeCount{Type: "Pump", Count: 2},
		),
		Equipment: []core.EquipmentRow{
			{ID: 1, Name: "P-1", Type: "Pump", Flowrate: 1},
			{ID: 2, Name: "V-1", Type: "Valve", Flowrate: 2},
			{ID: 3, Name: "P-2", Type: "Pump", Flowrate: 3},
		},
	}
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	assert.Equal(t, ":memory:", store.Path())
	require.NoError(t, store.Close())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	for _, table := range []string{"session", "history", "activity"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		_ = rows.Close()
	}

	// running again is a no-op
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.db")

	store, err := OpenAndMigrate(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.FileExists(t, path)
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Migrate(ctx), errNotOpened)
	assert.ErrorIs(t, store.SaveSnapshot(ctx, Snapshot{}), errNotOpened)
	_, err := store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, errNotOpened)
	_, err = store.RecordActivity(ctx, Activity{})
	assert.ErrorIs(t, err, errNotOpened)
	_, err = store.ListActivity(ctx, 1)
	assert.ErrorIs(t, err, errNotOpened)
	_, err = store.PruneActivity(ctx, 1)
	assert.ErrorIs(t, err, errNotOpened)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_Snapshot(t *testing.T) {
	tests := []struct {
		name  string
		state func(t *testing.T) session.State
	}{
		{
			name:  "initial state",
			state: func(*testing.T) session.State { return session.NewState() },
		},
		{
			name: "full state",
			state: func(t *testing.T) session.State {
				s := session.NewState()
				s.Authenticated = true
				s.Notice = &session.Notice{Level: session.LevelError, Kind: core.KindServer, Op: session.OpLoad, Text: "Error loading dataset"}
				s.Dataset = sampleDetail(t)
				s.History = []core.DatasetSummary{
					sampleDetail(t).Summary(),
					{ID: 3, Filename: "old.csv", TotalCount: 1},
				}
				return s
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			want := tt.state(t)
			require.NoError(t, store.SaveSnapshot(ctx, Snapshot{Username: "ada", State: want}))

			got, err := store.LoadSnapshot(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.Equal(t, "ada", got.Username)
			assert.False(t, got.SavedAt.IsZero())
			assert.Equal(t, want.Authenticated, got.State.Authenticated)
			assert.Equal(t, want.Notice, got.State.Notice)
			assert.Equal(t, session.PendingIdle, got.State.Pending)
			require.Len(t, got.State.History, len(want.History))
			for i := range want.History {
				assert.Equal(t, want.History[i].ID, got.State.History[i].ID)
				assert.Equal(t, want.History[i].Filename, got.State.History[i].Filename)
				assert.True(t, want.History[i].UploadedAt.Equal(got.State.History[i].UploadedAt.Time))
			}

			if want.Dataset == nil {
				assert.Nil(t, got.State.Dataset)
				return
			}
			require.NotNil(t, got.State.Dataset)
			assert.Equal(t, want.Dataset.Equipment, got.State.Dataset.Equipment)
			assert.Equal(t, []string{"Valve", "Pump"}, got.State.Dataset.TypeDistribution.Types(), "key order survives")
		})
	}
}

func TestSQLiteStore_SnapshotOverwrites(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := session.NewState()
	first.History = []core.DatasetSummary{{ID: 1}, {ID: 2}, {ID: 3}}
	first.Dataset = sampleDetail(t)
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{State: first}))

	second := session.NewState()
	second.History = []core.DatasetSummary{{ID: 9}}
	require.NoError(t, store.SaveSnapshot(ctx, Snapshot{State: second}))

	got, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got.State.History, 1)
	assert.Equal(t, int64(9), got.State.History[0].ID)
	assert.Nil(t, got.State.Dataset)
}

func TestSQLiteStore_LoadSnapshotEmpty(t *testing.T) {
	store := setupTestStore(t)

	snap, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLiteStore_Activity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, op := range []string{session.OpLogin, session.OpUpload, session.OpLoad, session.OpExport} {
		a, err := store.RecordActivity(ctx, Activity{Op: op, Outcome: OutcomeOK, At: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
		assert.Len(t, a.ID, 36)
	}

	all, err := store.ListActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, session.OpExport, all[0].Op, "newest first")
	assert.Equal(t, session.OpLogin, all[3].Op)

	top, err := store.ListActivity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, session.OpLoad, top[1].Op)

	deleted, err := store.PruneActivity(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	rest, err := store.ListActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, session.OpExport, rest[0].Op)
}

func TestSQLiteStore_ActivitySameTimestamp(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, op := range []string{"a", "b", "c"} {
		_, err := store.RecordActivity(ctx, Activity{Op: op, Outcome: OutcomeOK, At: at})
		require.NoError(t, err)
	}

	list, err := store.ListActivity(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{list[0].Op, list[1].Op, list[2].Op})
}

func TestActivityFromEvent(t *testing.T) {
	at := time.Now().UTC()

	ok := ActivityFromEvent(session.Event{Op: session.OpLoad, Message: "plant.csv", At: at})
	assert.Equal(t, OutcomeOK, ok.Outcome)
	assert.Empty(t, ok.Kind)
	assert.Equal(t, at, ok.At)

	failed := ActivityFromEvent(session.Event{
		Op:      session.OpUpload,
		Err:     core.NewError(core.KindValidation, session.OpUpload, session.MsgSelectFile, nil),
		Message: session.MsgSelectFile,
	})
	assert.Equal(t, OutcomeError, failed.Outcome)
	assert.Equal(t, "validation", failed.Kind)
	assert.Equal(t, "Please select a file", failed.Message)
}

// --- failure paths ---

func TestSQLiteStore_DatabaseErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(mock sqlmock.Sqlmock)
		run    func(s *SQLiteStore) error
		errMsg string
	}{
		{
			name:  "begin fails",
			setup: func(mock sqlmock.Sqlmock) { mock.ExpectBegin().WillReturnError(assert.AnError) },
			run: func(s *SQLiteStore) error {
				return s.SaveSnapshot(context.Background(), Snapshot{State: session.NewState()})
			},
			errMsg: "failed to begin transaction",
		},
		{
			name: "session upsert fails and rolls back",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO session").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				return s.SaveSnapshot(context.Background(), Snapshot{State: session.NewState()})
			},
			errMsg: "failed to save session",
		},
		{
			name: "history insert fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO session").WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectExec("DELETE FROM history").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("INSERT INTO history").WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			run: func(s *SQLiteStore) error {
				st := session.NewState()
				st.History = []core.DatasetSummary{{ID: 4}}
				return s.SaveSnapshot(context.Background(), Snapshot{State: st})
			},
			errMsg: "failed to save history entry 4",
		},
		{
			name:  "load query fails",
			setup: func(mock sqlmock.Sqlmock) { mock.ExpectQuery("SELECT authenticated").WillReturnError(assert.AnError) },
			run: func(s *SQLiteStore) error {
				_, err := s.LoadSnapshot(context.Background())
				return err
			},
			errMsg: "failed to load session",
		},
		{
			name:  "record activity fails",
			setup: func(mock sqlmock.Sqlmock) { mock.ExpectExec("INSERT INTO activity").WillReturnError(assert.AnError) },
			run: func(s *SQLiteStore) error {
				_, err := s.RecordActivity(context.Background(), Activity{Op: "x", Outcome: OutcomeOK})
				return err
			},
			errMsg: "failed to record activity",
		},
		{
			name:  "list activity fails",
			setup: func(mock sqlmock.Sqlmock) { mock.ExpectQuery("SELECT id, operation").WillReturnError(assert.AnError) },
			run: func(s *SQLiteStore) error {
				_, err := s.ListActivity(context.Background(), 10)
				return err
			},
			errMsg: "failed to list activity",
		},
		{
			name:  "prune fails",
			setup: func(mock sqlmock.Sqlmock) { mock.ExpectExec("DELETE FROM activity").WillReturnError(assert.AnError) },
			run: func(s *SQLiteStore) error {
				_, err := s.PruneActivity(context.Background(), 10)
				return err
			},
			errMsg: "failed to prune activity",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			tt.setup(mock)
			err = tt.run(NewWithDB(db))

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.True(t, errors.Is(err, assert.AnError))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
