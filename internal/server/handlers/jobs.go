package handlers

import (
	"net/http"

	"git.home.luguber.info/inful/applianced/internal/directory"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/jobs"
	"git.home.luguber.info/inful/applianced/internal/server/responses"
)

// JobHandlers serves the start/stop job chain routes.
type JobHandlers struct {
	dir     *directory.Directory
	tracker *jobs.Tracker
	adapter *derrors.HTTPErrorAdapter
}

// NewJobHandlers creates the job handler module.
func NewJobHandlers(dir *directory.Directory, tracker *jobs.Tracker, adapter *derrors.HTTPErrorAdapter) *JobHandlers {
	return &JobHandlers{dir: dir, tracker: tracker, adapter: adapter}
}

// Register wires the job routes onto the mux. Each verb route appends one
// phase touch; the chain's ordering is driven by the orchestrator calling
// these routes, not enforced here.
func (h *JobHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /servers/{name}/start", h.begin(jobs.OperationStart))
	mux.HandleFunc("PUT /servers/{name}/stop", h.begin(jobs.OperationStop))
	mux.HandleFunc("PUT /servers/{name}/starting", h.advance("start"))
	mux.HandleFunc("PUT /servers/{name}/started", h.advance("started"))
	mux.HandleFunc("PUT /servers/{name}/stopping", h.advance("stop"))
	mux.HandleFunc("PUT /servers/{name}/stopped", h.advance("stopped"))
	mux.HandleFunc("GET /servers/{name}/job", h.status)
}

func (h *JobHandlers) begin(op jobs.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
		if err != nil {
			h.adapter.WriteErrorResponse(w, r, err)
			return
		}
		jobID, err := h.tracker.Begin(r.Context(), id, op)
		if err != nil {
			h.adapter.WriteErrorResponse(w, r, err)
			return
		}
		h.writeStatus(w, r, jobID)
	}
}

func (h *JobHandlers) advance(phase string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
		if err != nil {
			h.adapter.WriteErrorResponse(w, r, err)
			return
		}
		if err := h.tracker.Advance(r.Context(), id, phase); err != nil {
			h.adapter.WriteErrorResponse(w, r, err)
			return
		}
		h.writeStatus(w, r, id)
	}
}

func (h *JobHandlers) status(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.writeStatus(w, r, id)
}

func (h *JobHandlers) writeStatus(w http.ResponseWriter, r *http.Request, jobID int64) {
	status, err := h.tracker.Status(r.Context(), jobID)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.ProgressResponse{
		ArtifactID: status.ApplianceID,
		State:      status.Phase,
		Complete:   status.Complete,
	})
}
