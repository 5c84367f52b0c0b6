package dashboard_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapstack-labs/eqviz/internal/testutil"
	"github.com/leapstack-labs/eqviz/internal/ui/features"
	"github.com/leapstack-labs/eqviz/internal/ui/features/common"
	"github.com/leapstack-labs/eqviz/internal/ui/features/dashboard"
	"github.com/leapstack-labs/eqviz/internal/viewmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_InvalidID(t *testing.T) {
	f := features.SetupTestFixture(t)
	h := dashboard.NewHandlers(f.Session, f.SessionStore)

	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, "/api/datasets/abc/load", nil), "id", "abc")
	rec := httptest.NewRecorder()
	h.Load(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body common.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "validation", body.Kind)
	assert.Zero(t, f.Service.TotalCalls())
}

func TestLoad_MakesDatasetCurrent(t *testing.T) {
	f := features.SetupTestFixture(t)
	d, err := f.Service.Seed("plant.csv", testutil.SampleCSV)
	require.NoError(t, err)
	h := dashboard.NewHandlers(f.Session, f.SessionStore)

	id := "1"
	req := features.RequestWithPathParam(httptest.NewRequest(http.MethodPost, "/api/datasets/1/load", nil), "id", id)
	rec := httptest.NewRecorder()
	h.Load(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var db viewmodel.Dashboard
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&db))
	assert.Equal(t, d.ID, db.DatasetID)
	assert.Equal(t, "plant.csv", f.Session.Current().Filename)
}

func TestChartsWithoutDataset(t *testing.T) {
	f := features.SetupTestFixture(t)
	h := dashboard.NewHandlers(f.Session, f.SessionStore)

	for name, handler := range map[string]http.HandlerFunc{
		"types":      h.TypeChart,
		"parameters": h.ParameterChart,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, "null", rec.Body.String())
		})
	}

	rec := httptest.NewRecorder()
	h.Equipment(rec, httptest.NewRequest(http.MethodGet, "/api/equipment", nil))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRefreshHistory_FailureReturnsCache(t *testing.T) {
	f := features.SetupTestFixture(t)
	_, err := f.Service.Seed("plant.csv", testutil.SampleCSV)
	require.NoError(t, err)
	require.NoError(t, f.Session.RefreshHistory(context.Background()))

	f.Service.Fail(testutil.OpHistory, http.StatusInternalServerError, "down")
	h := dashboard.NewHandlers(f.Session, f.SessionStore)

	rec := httptest.NewRecorder()
	h.RefreshHistory(rec, httptest.NewRequest(http.MethodPost, "/api/history/refresh", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)
	assert.Nil(t, f.Session.Notice(), "history failures are silent")
}
