package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/report"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/ui/features/common"
	"github.com/leapstack-labs/eqviz/internal/viewmodel"
	"github.com/leapstack-labs/eqviz/pkg/core"
	"github.com/starfederation/datastar-go/datastar"
)

// maxUploadBytes bounds a multipart upload.
const maxUploadBytes = 32 << 20

// Handlers provides HTTP handlers for the dashboard feature.
type Handlers struct {
	orch         *session.Orchestrator
	sessionStore sessions.Store
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(orch *session.Orchestrator, sessionStore sessions.Store) *Handlers {
	return &Handlers{orch: orch, sessionStore: sessionStore}
}

// StateView is the JSON form of the session.
type StateView struct {
	Authenticated bool                  `json:"authenticated"`
	Username      string                `json:"username,omitempty"`
	Pending       session.Pending       `json:"pending"`
	Notice        *session.Notice       `json:"notice"`
	Dataset       *viewmodel.Dashboard  `json:"dataset"`
	History       []core.DatasetSummary `json:"history"`
}

// NewStateView builds the view of s.
func NewStateView(s session.State, username string) StateView {
	history := s.History
	if history == nil {
		history = []core.DatasetSummary{}
	}
	return StateView{
		Authenticated: s.Authenticated,
		Username:      username,
		Pending:       s.Pending,
		Notice:        s.Notice,
		Dataset:       viewmodel.Build(s.Dataset, false),
		History:       history,
	}
}

// State returns the whole session view.
func (h *Handlers) State(w http.ResponseWriter, r *http.Request) {
	common.WriteJSON(w, http.StatusOK, NewStateView(h.orch.Snapshot(), common.Username(h.sessionStore, r)))
}

// History returns the cached history.
func (h *Handlers) History(w http.ResponseWriter, _ *http.Request) {
	list := h.orch.History()
	if list == nil {
		list = []core.DatasetSummary{}
	}
	common.WriteJSON(w, http.StatusOK, list)
}

// RefreshHistory refreshes the history from the service and returns it.
// A failed refresh still answers 200 with the cached list.
func (h *Handlers) RefreshHistory(w http.ResponseWriter, r *http.Request) {
	_ = h.orch.RefreshHistory(r.Context())
	h.History(w, r)
}

// TypeChart returns the type distribution series of the current dataset.
func (h *Handlers) TypeChart(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, viewmodel.TypeDistributionChart(h.orch.Current()))
}

// ParameterChart returns the parameter average series of the current dataset.
func (h *Handlers) ParameterChart(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, viewmodel.ParameterAverageChart(h.orch.Current()))
}

// Equipment returns the rows of the current dataset.
func (h *Handlers) Equipment(w http.ResponseWriter, _ *http.Request) {
	rows := viewmodel.EquipmentRows(h.orch.Current())
	if rows == nil {
		rows = []viewmodel.EquipmentRow{}
	}
	common.WriteJSON(w, http.StatusOK, rows)
}

// Upload accepts a multipart "file" and runs the upload. A running upload
// answers 409.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r)
	if err != nil {
		common.WriteError(w, core.NewError(core.KindValidation, session.OpUpload, session.MsgSelectFile, err))
		return
	}

	detail, err := h.orch.UploadFile(r.Context(), name, data)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusCreated, viewmodel.Build(detail, false))
}

func readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, fmt.Errorf("invalid upload: %w", err)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing file field: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return header.Filename, data, nil
}

// Load makes dataset {id} current.
func (h *Handlers) Load(w http.ResponseWriter, r *http.Request) {
	id, err := common.DatasetID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.orch.Load(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, viewmodel.Build(h.orch.Current(), false))
}

// Report streams the PDF report of dataset {id} as an attachment.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	id, err := common.DatasetID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	saver := report.SaverFunc(func(_ context.Context, name string, data []byte) (string, error) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			return "", err
		}
		return name, nil
	})
	if _, err := h.orch.Export(r.Context(), id, saver); err != nil {
		common.WriteError(w, err)
	}
}

// Events patches the page signals with the session state on connect and
// after every change of the session.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	updates, cancel := h.orch.Subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	username := common.Username(h.sessionStore, r)

	if err := sse.MarshalAndPatchSignals(NewStateView(h.orch.Snapshot(), username)); err != nil {
		_ = sse.ConsoleError(err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := sse.MarshalAndPatchSignals(NewStateView(h.orch.Snapshot(), username)); err != nil {
				_ = sse.ConsoleError(err)
				return
			}
		}
	}
}
