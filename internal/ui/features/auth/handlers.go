package auth

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/ui/features/common"
	"github.com/leapstack-labs/eqviz/pkg/core"
)

// Handlers provides HTTP handlers for the auth feature.
type Handlers struct {
	orch         *session.Orchestrator
	sessionStore sessions.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(orch *session.Orchestrator, sessionStore sessions.Store) *Handlers {
	return &Handlers{orch: orch, sessionStore: sessionStore}
}

// Credentials is the request body of login and register.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is the response body of a successful auth call.
type Result struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Message       string `json:"message,omitempty"`
}

func decode(r *http.Request, op string) (Credentials, error) {
	var c Credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		return c, core.NewError(core.KindValidation, op, "invalid request body", err)
	}
	return c, nil
}

// Login authenticates and remembers the user name in the cookie session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	creds, err := decode(r, session.OpLogin)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.orch.Login(r.Context(), creds.Username, creds.Password); err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.remember(w, r, creds.Username); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.WriteJSON(w, http.StatusOK, Result{Authenticated: true, Username: creds.Username})
}

// Register creates an account. It never logs in.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	creds, err := decode(r, session.OpRegister)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.orch.Register(r.Context(), creds.Username, creds.Password); err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, Result{
		Authenticated: h.orch.Authenticated(),
		Message:       session.MsgRegistered,
	})
}

// Logout clears the authenticated flag and forgets the user name.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.orch.Logout()
	if err := h.remember(w, r, ""); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	common.WriteJSON(w, http.StatusOK, Result{Authenticated: false})
}

func (h *Handlers) remember(w http.ResponseWriter, r *http.Request, username string) error {
	// A stale or undecodable cookie still yields a usable new session.
	sess, _ := h.sessionStore.Get(r, common.SessionName)
	if username == "" {
		delete(sess.Values, common.UsernameKey)
	} else {
		sess.Values[common.UsernameKey] = username
	}
	return sess.Save(r, w)
}
