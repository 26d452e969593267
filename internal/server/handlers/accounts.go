package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/applianced/internal/accounts"
	"git.home.luguber.info/inful/applianced/internal/credit"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/observability"
	"git.home.luguber.info/inful/applianced/internal/server/responses"
)

// AccountHandlers serves the /users routes: account records, passwords and
// credit.
type AccountHandlers struct {
	accounts *accounts.Directory
	credit   *credit.Ledger
	adapter  *derrors.HTTPErrorAdapter
}

// NewAccountHandlers creates the account handler module.
func NewAccountHandlers(acc *accounts.Directory, cr *credit.Ledger, adapter *derrors.HTTPErrorAdapter) *AccountHandlers {
	return &AccountHandlers{accounts: acc, credit: cr, adapter: adapter}
}

// Register wires the account routes onto the mux.
func (h *AccountHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /users/{username}", h.create)
	mux.HandleFunc("GET /users/{id}", h.details)
	mux.HandleFunc("PATCH /users/{id}", h.notImplemented)
	mux.HandleFunc("DELETE /users/{id}", h.notImplemented)
	mux.HandleFunc("PUT /users/{id}/password", h.setPassword)
	mux.HandleFunc("GET /users/{id}/password", h.verifyPassword)
	mux.HandleFunc("PUT /users/{id}/credit", h.adjustCredit)
	mux.HandleFunc("GET /users/{id}/credit", h.balance)
}

type createUserRequest struct {
	Type   string `json:"type"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

func (h *AccountHandlers) create(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")

	var req createUserRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if req.Type == "" {
		req.Type = "user"
	}
	if req.Handle == "" {
		req.Handle = username
	}
	if req.Name == "" {
		req.Name = username
	}

	id, err := h.accounts.Create(r.Context(), req.Type, req.Handle, req.Name, username)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.CreatedResponse{ID: id})
}

func (h *AccountHandlers) details(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	account, err := h.accounts.Details(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	balance, err := h.credit.Balance(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.UserResponse{
		ActorID:  account.ID,
		Type:     account.Type,
		Handle:   account.Handle,
		Name:     account.Name,
		Username: account.Username,
		Credits:  balance,
	})
}

func (h *AccountHandlers) notImplemented(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if r.Method == http.MethodDelete {
		err = h.accounts.Delete(r.Context(), id)
	} else {
		err = h.accounts.Update(r.Context(), id)
	}
	h.adapter.WriteErrorResponse(w, r, err)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *AccountHandlers) setPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	var req passwordRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	ctx := observability.WithAccountID(r.Context(), id)
	if err := h.accounts.SetPassword(ctx, id, req.Password); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	observability.InfoContext(ctx, "account password updated")
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandlers) verifyPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	ctx := observability.WithAccountID(r.Context(), id)
	ok, err := h.accounts.CheckPassword(ctx, id, r.URL.Query().Get("password"))
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if !ok {
		observability.WarnContext(ctx, "password verification failed")
		h.adapter.WriteErrorResponse(w, r, derrors.AuthError("password verification failed").
			WithContext("account_id", id).Build())
		return
	}
	w.WriteHeader(http.StatusOK)
}

type creditRequest struct {
	Credit int64 `json:"credit"`
}

func (h *AccountHandlers) adjustCredit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	ctx := observability.WithAccountID(r.Context(), id)
	exists, err := h.accounts.Exists(ctx, id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if !exists {
		h.adapter.WriteErrorResponse(w, r, accounts.ErrAccountNotFound.WithContext("account_id", id))
		return
	}

	var req creditRequest
	if err := decodeBody(r, &req); err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	balance, err := h.credit.Adjust(ctx, id, req.Credit)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	observability.InfoContext(ctx, "credit adjusted",
		slog.Int64("delta", req.Credit), slog.Int64("balance", balance))
	_ = writeJSONPretty(w, r, http.StatusOK, responses.CreditResponse{
		ActorID:       id,
		CreditChange:  req.Credit,
		CreditBalance: balance,
	})
}

func (h *AccountHandlers) balance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	// A balance only exists for a known account; a fresh ledger is not one.
	exists, err := h.accounts.Exists(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	if !exists {
		h.adapter.WriteErrorResponse(w, r, accounts.ErrAccountNotFound.WithContext("account_id", id))
		return
	}
	balance, err := h.credit.Balance(r.Context(), id)
	if err != nil {
		h.adapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, responses.BalanceResponse{CreditBalance: balance})
}

// pathID parses an integer path segment.
func pathID(r *http.Request, key string) (int64, error) {
	raw := r.PathValue(key)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, derrors.ValidationError("path segment must be an integer id").
			WithContext(key, raw).Build()
	}
	return id, nil
}

// decodeBody decodes a JSON request body. An empty body decodes to the zero
// value; malformed JSON is a validation error.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return derrors.ValidationError("malformed JSON request body").
			WithContext("error", err.Error()).Build()
	}
	return nil
}
