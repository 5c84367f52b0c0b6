// Package common provides shared types and utilities for UI features.
package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Cookie session settings.
const (
	SessionName = "eqviz"
	UsernameKey = "username"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorBody with a status derived from its kind.
func WriteError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrSuperseded) {
		WriteJSON(w, http.StatusConflict, ErrorBody{Error: "superseded by a newer request"})
		return
	}
	kind := core.KindOf(err)
	WriteJSON(w, StatusFor(err), ErrorBody{
		Error: core.MessageOf(err, err.Error()),
		Kind:  string(kind),
	})
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindBusy:
		return http.StatusConflict
	case core.KindAuth:
		return http.StatusUnauthorized
	case core.KindServer:
		var e *core.Error
		if errors.As(err, &e) && e.Status >= 400 && e.Status < 600 {
			return e.Status
		}
		return http.StatusBadGateway
	case core.KindNetwork, core.KindMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// DatasetID reads the {id} URL parameter.
func DatasetID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewError(core.KindValidation, "parseID", "invalid dataset id "+strconv.Quote(raw), err)
	}
	return id, nil
}

// Username returns the user name remembered by the cookie session.
func Username(store sessions.Store, r *http.Request) string {
	sess, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}
	name, _ := sess.Values[UsernameKey].(string)
	return name
}
