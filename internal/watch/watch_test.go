package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/eqviz/internal/client"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/testutil"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUploader records uploads and can pretend to be busy.
type stubUploader struct {
	mu       sync.Mutex
	pending  session.Pending
	selected []string
	err      error
}

func (s *stubUploader) UploadFile(_ context.Context, name string, _ []byte) (*core.DatasetDetail, error) {
	s.mu.Lock()
	s.selected = append(s.selected, name)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &core.DatasetDetail{DatasetSummary: core.DatasetSummary{ID: 1, Filename: name}}, nil
}

func (s *stubUploader) Pending() session.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == "" {
		return session.PendingIdle
	}
	return s.pending
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestIsCSV(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"data.csv", true},
		{"/tmp/in/DATA.CSV", true},
		{"data.csv.tmp", false},
		{"notes.txt", false},
		{".data.csv", false},
		{"~lock.data.csv", false},
		{"csv", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCSV(tt.name))
		})
	}
}

func TestProcess_SkipsWhenBusy(t *testing.T) {
	up := &stubUploader{pending: session.PendingUploading}
	w := New(t.TempDir(), up, WithLogger(testutil.NewTestLogger(t)))

	res := w.Process(context.Background(), writeFile(t, t.TempDir(), "a.csv", testutil.SampleCSV))

	assert.True(t, res.Skipped)
	assert.NoError(t, res.Err)
	assert.Empty(t, up.selected, "no selection while busy")
}

func TestProcess_BusyRejectionIsSkip(t *testing.T) {
	up := &stubUploader{err: core.NewError(core.KindBusy, session.OpUpload, session.MsgUploadBusy, nil)}
	w := New(t.TempDir(), up)

	res := w.Process(context.Background(), writeFile(t, t.TempDir(), "a.csv", testutil.SampleCSV))

	assert.True(t, res.Skipped)
	assert.NoError(t, res.Err)
}

func TestProcess_UploadError(t *testing.T) {
	up := &stubUploader{err: errors.New("boom")}
	w := New(t.TempDir(), up)

	res := w.Process(context.Background(), writeFile(t, t.TempDir(), "a.csv", testutil.SampleCSV))

	assert.False(t, res.Skipped)
	assert.EqualError(t, res.Err, "boom")
	assert.Equal(t, []string{"a.csv"}, up.selected)
}

func TestProcess_MissingFile(t *testing.T) {
	up := &stubUploader{}
	w := New(t.TempDir(), up)

	res := w.Process(context.Background(), filepath.Join(t.TempDir(), "gone.csv"))

	require.Error(t, res.Err)
	assert.Empty(t, up.selected)
}

func TestRun_NotADirectory(t *testing.T) {
	p := writeFile(t, t.TempDir(), "a.csv", "x")
	w := New(p, &stubUploader{})

	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestRun_UploadsSettledCSV(t *testing.T) {
	fs := testutil.NewFakeService(t)
	c, err := client.New(fs.BaseURL(), client.WithLogger(testutil.NewTestLogger(t)))
	require.NoError(t, err)
	o := session.New(c, session.WithLogger(testutil.NewTestLogger(t)))
	t.Cleanup(o.Close)

	dir := t.TempDir()
	results := make(chan Result, 16)
	w := New(dir, o,
		WithDebounce(20*time.Millisecond),
		WithLogger(testutil.NewTestLogger(t)),
		WithResultHandler(func(r Result) {
			select {
			case results <- r:
			default:
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// fsnotify needs the watch registered before the file appears.
	require.Eventually(t, func() bool {
		writeFile(t, dir, "ignored.txt", "x")
		writeFile(t, dir, "plant.csv", testutil.SampleCSV)
		select {
		case r := <-results:
			results <- r
			return true
		default:
			return false
		}
	}, 3*time.Second, 100*time.Millisecond)

	r := <-results
	require.NoError(t, r.Err)
	assert.Equal(t, filepath.Join(dir, "plant.csv"), r.Path)
	require.NotNil(t, r.Detail)
	assert.Equal(t, "plant.csv", r.Detail.Filename)
	assert.Equal(t, "plant.csv", o.Current().Filename)
	assert.NotEmpty(t, o.History())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
