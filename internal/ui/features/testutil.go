// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/eqviz/internal/client"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/testutil"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Service      *testutil.FakeService
	Session      *session.Orchestrator
	SessionStore *sessions.CookieStore
}

// SetupTestFixture starts a fake analytics service and an orchestrator
// talking to it.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	logger := testutil.NewTestLogger(t)
	svc := testutil.NewFakeService(t)

	c, err := client.New(svc.BaseURL(), client.WithLogger(logger))
	require.NoError(t, err)

	orch := session.New(c, session.WithLogger(logger))
	t.Cleanup(orch.Close)

	return &TestFixture{
		Service:      svc,
		Session:      orch,
		SessionStore: NewTestSessionStore(),
	}
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// NewTestSessionStore creates a session store for testing.
func NewTestSessionStore() *sessions.CookieStore {
	return sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!"))
}
