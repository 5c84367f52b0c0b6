package report

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/eqviz/internal/testutil"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context, id int64) ([]byte, error)

func (f fetcherFunc) FetchReport(ctx context.Context, id int64) ([]byte, error) {
	return f(ctx, id)
}

func pdfFetcher(calls *[]int64) Fetcher {
	return fetcherFunc(func(_ context.Context, id int64) ([]byte, error) {
		*calls = append(*calls, id)
		return testutil.FakePDF, nil
	})
}

func TestExporter_SavesUnderDeterministicName(t *testing.T) {
	dir := t.TempDir()
	var calls []int64
	e := NewExporter(pdfFetcher(&calls), testutil.NewTestLogger(t))

	path, err := e.Export(context.Background(), 17, FileSaver{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "equipment_report_17.pdf"), path)
	assert.Equal(t, []int64{17}, calls)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.FakePDF, data)
}

func TestExporter_RepeatedExportIsAllowed(t *testing.T) {
	dir := t.TempDir()
	var calls []int64
	e := NewExporter(pdfFetcher(&calls), nil)

	for i := 0; i < 3; i++ {
		_, err := e.Export(context.Background(), 5, FileSaver{Dir: dir})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{5, 5, 5}, calls)
}

func TestExporter_FetchFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   core.ErrorKind
		wantStatus int
	}{
		{name: "network", err: core.NewError(core.KindNetwork, "fetchReport", "", errors.New("refused")), wantKind: core.KindNetwork},
		{name: "server", err: core.NewError(core.KindServer, "fetchReport", "Not found.", nil), wantKind: core.KindServer},
		{
			name:       "not found",
			err:        &core.Error{Kind: core.KindServer, Op: "fetchReport", Message: "Not found.", Status: 404},
			wantKind:   core.KindServer,
			wantStatus: 404,
		},
		{name: "untyped", err: errors.New("boom"), wantKind: core.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExporter(fetcherFunc(func(context.Context, int64) ([]byte, error) {
				return nil, tt.err
			}), nil)

			saved := false
			saver := SaverFunc(func(context.Context, string, []byte) (string, error) {
				saved = true
				return "", nil
			})

			_, err := e.Export(context.Background(), 1, saver)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, core.KindOf(err))
			assert.Equal(t, FailureMessage, core.MessageOf(err, ""))
			var ce *core.Error
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantStatus, ce.Status)
			assert.False(t, saved, "nothing should be saved after a failed download")
		})
	}
}

func TestExporter_SaveFailure(t *testing.T) {
	var calls []int64
	e := NewExporter(pdfFetcher(&calls), nil)

	_, err := e.Export(context.Background(), 1, SaverFunc(func(context.Context, string, []byte) (string, error) {
		return "", errors.New("disk full")
	}))
	require.Error(t, err)
	assert.Equal(t, FailureMessage, core.MessageOf(err, ""))
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestExporter_SaveFailureKeepsTypedCause(t *testing.T) {
	var calls []int64
	e := NewExporter(pdfFetcher(&calls), nil)

	_, err := e.Export(context.Background(), 1, SaverFunc(func(context.Context, string, []byte) (string, error) {
		return "", &core.Error{Kind: core.KindServer, Op: "writeReport", Status: 404}
	}))
	var ce *core.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, core.KindServer, ce.Kind)
	assert.Equal(t, 404, ce.Status)
	assert.Equal(t, FailureMessage, ce.Message)
}

func TestFileSaver_Destination(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		saver FileSaver
		want  string
	}{
		{name: "dir", saver: FileSaver{Dir: dir}, want: filepath.Join(dir, "r.pdf")},
		{name: "explicit file", saver: FileSaver{Dir: "ignored", Path: filepath.Join(dir, "out.pdf")}, want: filepath.Join(dir, "out.pdf")},
		{name: "explicit dir", saver: FileSaver{Path: dir}, want: filepath.Join(dir, "r.pdf")},
		{name: "default dir", saver: FileSaver{}, want: "r.pdf"},
		{name: "name cannot escape", saver: FileSaver{Dir: dir}, want: filepath.Join(dir, "r.pdf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := "r.pdf"
			if tt.name == "name cannot escape" {
				name = "../../r.pdf"
			}
			assert.Equal(t, tt.want, tt.saver.destination(name))
		})
	}
}

func TestWriterSaver(t *testing.T) {
	var buf bytes.Buffer
	name, err := WriterSaver{W: &buf}.Save(context.Background(), "x.pdf", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "x.pdf", name)
	assert.Equal(t, "abc", buf.String())
}
