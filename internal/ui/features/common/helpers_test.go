package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", core.NewError(core.KindValidation, "op", "bad", nil), http.StatusBadRequest},
		{"busy", core.NewError(core.KindBusy, "op", "busy", nil), http.StatusConflict},
		{"auth", core.NewError(core.KindAuth, "op", "no", nil), http.StatusUnauthorized},
		{"network", core.NewError(core.KindNetwork, "op", "down", nil), http.StatusBadGateway},
		{"malformed", core.NewError(core.KindMalformed, "op", "junk", nil), http.StatusBadGateway},
		{"server with status", &core.Error{Kind: core.KindServer, Status: 404, Message: "Not found."}, http.StatusNotFound},
		{"server without status", &core.Error{Kind: core.KindServer}, http.StatusBadGateway},
		{"wrapped", fmt.Errorf("outer: %w", core.NewError(core.KindBusy, "op", "busy", nil)), http.StatusConflict},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, core.NewError(core.KindBusy, session.OpUpload, session.MsgUploadBusy, nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Upload already in progress","kind":"busy"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteError(rec, session.ErrSuperseded)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
