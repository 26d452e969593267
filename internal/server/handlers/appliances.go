package handlers

import (
	"net/http"
	"slices"
	"strconv"

	"git.home.luguber.info/inful/applianced/internal/directory"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/logfields"
	"git.home.luguber.info/inful/applianced/internal/observability"
	"git.home.luguber.info/inful/applianced/internal/server/responses"
	"git.home.luguber.info/inful/applianced/internal/specs"
	"git.home.luguber.info/inful/applianced/internal/util/sets"
)

// ApplianceHandlers serves the /servers routes: appliance records, states,
// ownership, specifications and touch history.
type ApplianceHandlers struct {
	dir     *directory.Directory
	specs   *specs.History
	adapter *derrors.HTTPErrorAdapter
}

// NewApplianceHandlers creates the appliance handler module.
func NewApplianceHandlers(dir *directory.Directory, sp *specs.History, adapter *derrors.HTTPErrorAdapter) *ApplianceHandlers {
	return &ApplianceHandlers{dir: dir, specs: sp, adapter: adapter}
}

// Register wires the appliance routes onto the mux.
func (h *ApplianceHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /servers/{name}", h.create)
	mux.HandleFunc("GET /servers/{name}", h.detailsByName)
	mux.HandleFunc("PATCH /servers/{name}", h.notImplemented)
	mux.HandleFunc("DELETE /servers/{name}", h.notImplemented)
	mux.HandleFunc("GET /artifacts/{id}", h.detailsByID)
	mux.HandleFunc("GET /users/{id}/servers", h.listByOwner)
	mux.HandleFunc("GET /states/{state}/servers", h.listByState)
	mux.HandleFunc("PUT /servers/{name}/owner", h.grantOwnership)
	mux.HandleFunc("PUT /servers/{name}/states/{state}", h.setState)
	mux.HandleFunc("PUT /servers/{name}/specification", h.addSpecification)
	mux.HandleFunc("GET /servers/{name}/specification", h.getSpecification)
	mux.HandleFunc("GET /servers/{name}/touches", h.touches)
}

type createServerRequest struct {
	UUID string `json:"uuid"`
}

func (h *ApplianceHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	id, err := h.dir.Create(r.Context(), r.PathValue("name"), req.UUID)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	observability.InfoContext(observability.WithApplianceID(r.Context(), id),
		"appliance created", logfields.ApplianceName(r.PathValue("name")))
	_ = writeJSONPretty(w, r, http.StatusOK, responses.CreatedResponse{ID: id})
}

func (h *ApplianceHandlers) detailsByName(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.writeDetails(w, r, id)
}

func (h *ApplianceHandlers) detailsByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.writeDetails(w, r, id)
}

func (h *ApplianceHandlers) writeDetails(w http.ResponseWriter, r *http.Request, id int64) {
	details, err := h.dir.Details(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.ServerResponse{
		ArtifactID:   details.ID,
		ArtifactName: details.Name,
		ArtifactUUID: details.UUID,
		State:        details.State,
	})
}

func (h *ApplianceHandlers) notImplemented(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if r.Method == http.MethodDelete {
		err = h.dir.Delete(r.Context(), id)
	} else {
		err = h.dir.Update(r.Context(), id)
	}
	h.adapter.WriteErrorResponse(w, r, err)
}

func (h *ApplianceHandlers) listByOwner(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	set, err := h.dir.ListByOwner(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.writeList(w, r, setToSorted(set))
}

func (h *ApplianceHandlers) listByState(w http.ResponseWriter, r *http.Request) {
	set, err := h.dir.ListByState(r.Context(), r.PathValue("state"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	h.writeList(w, r, setToSorted(set))
}

func (h *ApplianceHandlers) writeList(w http.ResponseWriter, r *http.Request, ids []int64) {
	out := make([]responses.ServerResponse, 0, len(ids))
	for _, id := range ids {
		details, err := h.dir.Details(r.Context(), id)
		if err != nil {
			h.adapter.WriteErrorResponse(w, r, err)
			return
		}
		out = append(out, responses.ServerResponse{
			ArtifactID:   details.ID,
			ArtifactName: details.Name,
			ArtifactUUID: details.UUID,
			State:        details.State,
		})
	}
	_ = writeJSONPretty(w, r, http.StatusOK, out)
}

type ownerRequest struct {
	OwnerID int64 `json:"owner_id"`
}

func (h *ApplianceHandlers) grantOwnership(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req ownerRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	seq, err := h.dir.GrantOwnership(r.Context(), id, req.OwnerID)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.SequenceResponse{Sequence: seq})
}

func (h *ApplianceHandlers) setState(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	ctx := observability.WithApplianceID(r.Context(), id)
	seq, err := h.dir.SetState(ctx, id, r.PathValue("state"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	observability.InfoContext(ctx, "appliance state changed",
		logfields.State(r.PathValue("state")), logfields.Sequence(seq))
	_ = writeJSONPretty(w, r, http.StatusOK, responses.SequenceResponse{Sequence: seq})
}

type specificationRequest struct {
	Cores int64 `json:"cores"`
	RAM   int64 `json:"ram"`
}

func (h *ApplianceHandlers) addSpecification(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req specificationRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	seq, err := h.specs.Add(r.Context(), id, req.Cores, req.RAM)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.SequenceResponse{Sequence: seq})
}

// getSpecification serves the latest specification, or the one n versions
// back when ?n= is given.
func (h *ApplianceHandlers) getSpecification(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		n, err = strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.adapter.WriteErrorResponse(w, r, derrors.ValidationError("n must be a non-negative integer").
				WithContext("n", raw).Build())
			return
		}
	}
	spec, err := h.specs.Previous(r.Context(), id, n)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.SpecificationResponse{Cores: spec.Cores, RAM: spec.RAM})
}

// touches serves the appliance's touch history of one kind, newest first.
func (h *ApplianceHandlers) touches(w http.ResponseWriter, r *http.Request) {
	id, err := h.dir.IDForName(r.Context(), r.PathValue("name"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	kind := ledger.Kind(r.URL.Query().Get("kind"))
	switch kind {
	case ledger.KindState, ledger.KindSpecification, ledger.KindOwnership, ledger.KindCredit, ledger.KindPassword:
	default:
		h.adapter.WriteErrorResponse(w, r, derrors.ValidationError("unknown touch kind").
			WithContext("kind", string(kind)).Build())
		return
	}
	touches, err := h.dir.History(r.Context(), id, kind)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}

	out := make([]responses.TouchResponse, 0, len(touches))
	for _, t := range touches {
		tr := responses.TouchResponse{
			Sequence:  t.Sequence,
			TargetID:  t.TargetID,
			Kind:      string(t.Kind),
			CreatedAt: t.CreatedAt.Unix(),
		}
		switch v := t.Payload.(type) {
		case ledger.StateChange:
			name, err := h.stateName(r, v.StateID)
			if err != nil {
				h.adapter.WriteErrorResponse(w, r, err)
				return
			}
			tr.State = name
		case ledger.SpecificationChange:
			tr.Cores = v.Cores
			tr.RAM = v.RAM
		case ledger.OwnershipChange:
			tr.OwnerID = v.OwnerID
		case ledger.CreditAdjustment:
			tr.Delta = v.Delta
		case ledger.PasswordChange:
			// hash never leaves the ledger
		}
		out = append(out, tr)
	}
	_ = writeJSONPretty(w, r, http.StatusOK, out)
}

func (h *ApplianceHandlers) stateName(r *http.Request, stateID int64) (string, error) {
	return h.dir.StateName(r.Context(), stateID)
}

func setToSorted(set sets.Set[int64]) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
