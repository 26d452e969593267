package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"git.home.luguber.info/inful/applianced/internal/accounts"
	"git.home.luguber.info/inful/applianced/internal/config"
	"git.home.luguber.info/inful/applianced/internal/credit"
	"git.home.luguber.info/inful/applianced/internal/directory"
	derrors "git.home.luguber.info/inful/applianced/internal/foundation/errors"
	"git.home.luguber.info/inful/applianced/internal/jobs"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/registry"
	"git.home.luguber.info/inful/applianced/internal/specs"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	store, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(store)
	if err := reg.Register(t.Context(), config.DefaultStates); err != nil {
		t.Fatalf("register states: %v", err)
	}

	dir := directory.New(store, reg)
	adapter := derrors.NewHTTPErrorAdapter(nil)

	mux := http.NewServeMux()
	NewAccountHandlers(accounts.New(store), credit.New(store), adapter).Register(mux)
	NewApplianceHandlers(dir, specs.New(store), adapter).Register(mux)
	NewJobHandlers(dir, jobs.New(dir), adapter).Register(mux)
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestUserLifecycle(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/users/asplice", `{"name":"Albert Splice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create user: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[struct {
		ID int64 `json:"id"`
	}](t, rec)
	if created.ID == 0 {
		t.Fatal("expected a non-zero account id")
	}

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/users/%d", created.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d", rec.Code)
	}
	user := decode[map[string]any](t, rec)
	if user["username"] != "asplice" || user["name"] != "Albert Splice" {
		t.Errorf("unexpected user payload: %v", user)
	}
	if user["credits"] != float64(0) {
		t.Errorf("fresh account should report 0 credits, got %v", user["credits"])
	}

	for _, method := range []string{http.MethodPatch, http.MethodDelete} {
		rec = do(t, mux, method, fmt.Sprintf("/users/%d", created.ID), "")
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s user: expected 501, got %d", method, rec.Code)
		}
	}
}

func TestUserNotFound(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodGet, "/users/4040", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPasswordVerification(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/users/pwuser", "")
	id := decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID

	rec = do(t, mux, http.MethodPut, fmt.Sprintf("/users/%d/password", id), `{"password":"correcthorse"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set password: expected 204, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/users/%d/password?password=correcthorse", id), "")
	if rec.Code != http.StatusOK {
		t.Errorf("correct password: expected 200, got %d", rec.Code)
	}
	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/users/%d/password?password=wrong", id), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", rec.Code)
	}
}

func TestCreditRoutes(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/users/rich", "")
	id := decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID

	rec = do(t, mux, http.MethodPut, fmt.Sprintf("/users/%d/credit", id), `{"credit":100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("adjust credit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	adj := decode[map[string]any](t, rec)
	if adj["actor_id"] != float64(id) || adj["credit_change"] != float64(100) || adj["credit_balance"] != float64(100) {
		t.Errorf("unexpected credit response: %v", adj)
	}

	rec = do(t, mux, http.MethodPut, fmt.Sprintf("/users/%d/credit", id), `{"credit":-30}`)
	adj = decode[map[string]any](t, rec)
	if adj["credit_balance"] != float64(70) {
		t.Errorf("expected balance 70, got %v", adj["credit_balance"])
	}

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/users/%d/credit", id), "")
	bal := decode[map[string]any](t, rec)
	if bal["credit_balance"] != float64(70) {
		t.Errorf("expected balance 70, got %v", bal["credit_balance"])
	}

	// Credit against an unknown account is refused.
	rec = do(t, mux, http.MethodPut, "/users/999/credit", `{"credit":10}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account credit: expected 404, got %d", rec.Code)
	}
}

func TestBalanceUnknownAccount(t *testing.T) {
	mux := newTestMux(t)

	// No account means no balance, not an implicit zero.
	rec := do(t, mux, http.MethodGet, "/users/999/credit", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown account balance: expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

// captureLogs swaps the default logger for one writing to a buffer at debug
// level, restoring the previous logger when the test ends.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestMutationLogsCarryDomainContext(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/users/logged", "")
	id := decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID

	buf := captureLogs(t)
	do(t, mux, http.MethodPut, fmt.Sprintf("/users/%d/password", id), `{"password":"hunter2"}`)

	out := buf.String()
	if !strings.Contains(out, "account.id="+strconv.FormatInt(id, 10)) {
		t.Errorf("password update log should carry the account id:\n%s", out)
	}
	if !strings.Contains(out, "touch.kind=password") {
		t.Errorf("append log should carry the touch kind:\n%s", out)
	}

	buf.Reset()
	do(t, mux, http.MethodPut, "/servers/logged-appliance", "")
	do(t, mux, http.MethodPut, "/servers/logged-appliance/states/Started", "")

	out = buf.String()
	if !strings.Contains(out, "appliance.id=") || !strings.Contains(out, "state=Started") {
		t.Errorf("state change log should carry appliance context:\n%s", out)
	}
}

func TestServerLifecycle(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/servers/web-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("create server: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate name conflicts.
	rec = do(t, mux, http.MethodPut, "/servers/web-01", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create: expected 409, got %d", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/servers/web-01", "")
	server := decode[map[string]any](t, rec)
	if server["state"] != "Not yet initialised" {
		t.Errorf("expected sentinel state, got %v", server["state"])
	}
	if server["artifact_uuid"] != "web-01" {
		t.Errorf("empty uuid should default to name, got %v", server["artifact_uuid"])
	}

	rec = do(t, mux, http.MethodPut, "/servers/web-01/states/Started", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("set state: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(t, mux, http.MethodGet, "/servers/web-01", "")
	server = decode[map[string]any](t, rec)
	if server["state"] != "Started" {
		t.Errorf("expected Started, got %v", server["state"])
	}

	// Unregistered state names are refused.
	rec = do(t, mux, http.MethodPut, "/servers/web-01/states/Exploded", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown state: expected 404, got %d", rec.Code)
	}

	for _, method := range []string{http.MethodPatch, http.MethodDelete} {
		rec = do(t, mux, method, "/servers/web-01", "")
		if rec.Code != http.StatusNotImplemented {
			t.Errorf("%s server: expected 501, got %d", method, rec.Code)
		}
	}
}

func TestServerNotFound(t *testing.T) {
	mux := newTestMux(t)
	rec := do(t, mux, http.MethodGet, "/servers/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSpecificationRoutes(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodPut, "/servers/web-01", "")

	rec := do(t, mux, http.MethodPut, "/servers/web-01/specification", `{"cores":0,"ram":4}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid specification: expected 400, got %d", rec.Code)
	}

	do(t, mux, http.MethodPut, "/servers/web-01/specification", `{"cores":2,"ram":4}`)
	do(t, mux, http.MethodPut, "/servers/web-01/specification", `{"cores":4,"ram":8}`)

	rec = do(t, mux, http.MethodGet, "/servers/web-01/specification", "")
	spec := decode[map[string]any](t, rec)
	if spec["cores"] != float64(4) || spec["ram"] != float64(8) {
		t.Errorf("expected latest (4,8), got %v", spec)
	}

	rec = do(t, mux, http.MethodGet, "/servers/web-01/specification?n=1", "")
	spec = decode[map[string]any](t, rec)
	if spec["cores"] != float64(2) || spec["ram"] != float64(4) {
		t.Errorf("expected previous (2,4), got %v", spec)
	}

	// Deeper than recorded history is a conflict, not a not-found.
	rec = do(t, mux, http.MethodGet, "/servers/web-01/specification?n=5", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("insufficient history: expected 409, got %d", rec.Code)
	}
}

func TestJobChainRoutes(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodPut, "/servers/web-01", "")

	rec := do(t, mux, http.MethodPut, "/servers/web-01/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	progress := decode[map[string]any](t, rec)
	if progress["state"] != "pre-start" || progress["complete"] != false {
		t.Errorf("unexpected progress after start: %v", progress)
	}

	do(t, mux, http.MethodPut, "/servers/web-01/starting", "")
	rec = do(t, mux, http.MethodPut, "/servers/web-01/started", "")
	progress = decode[map[string]any](t, rec)
	if progress["state"] != "started" || progress["complete"] != true {
		t.Errorf("unexpected progress after started: %v", progress)
	}

	rec = do(t, mux, http.MethodGet, "/servers/web-01/job", "")
	progress = decode[map[string]any](t, rec)
	if progress["complete"] != true {
		t.Errorf("job status should be complete: %v", progress)
	}

	rec = do(t, mux, http.MethodPut, "/servers/web-01/stop", "")
	progress = decode[map[string]any](t, rec)
	if progress["state"] != "pre-stop" || progress["complete"] != false {
		t.Errorf("unexpected progress after stop: %v", progress)
	}
}

func TestOwnershipAndListings(t *testing.T) {
	mux := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/users/owner", "")
	ownerID := decode[struct {
		ID int64 `json:"id"`
	}](t, rec).ID

	do(t, mux, http.MethodPut, "/servers/a", "")
	do(t, mux, http.MethodPut, "/servers/b", "")

	rec = do(t, mux, http.MethodPut, "/servers/a/owner", fmt.Sprintf(`{"owner_id":%d}`, ownerID))
	if rec.Code != http.StatusOK {
		t.Fatalf("grant ownership: expected 200, got %d", rec.Code)
	}
	do(t, mux, http.MethodPut, "/servers/a/states/Started", "")
	do(t, mux, http.MethodPut, "/servers/b/states/Stopped", "")

	rec = do(t, mux, http.MethodGet, fmt.Sprintf("/users/%d/servers", ownerID), "")
	owned := decode[[]map[string]any](t, rec)
	if len(owned) != 1 || owned[0]["artifact_name"] != "a" {
		t.Errorf("unexpected owned list: %v", owned)
	}

	rec = do(t, mux, http.MethodGet, "/states/Stopped/servers", "")
	stopped := decode[[]map[string]any](t, rec)
	if len(stopped) != 1 || stopped[0]["artifact_name"] != "b" {
		t.Errorf("unexpected stopped list: %v", stopped)
	}
}

func TestTouchHistoryRoute(t *testing.T) {
	mux := newTestMux(t)
	do(t, mux, http.MethodPut, "/servers/web-01", "")
	do(t, mux, http.MethodPut, "/servers/web-01/states/Started", "")
	do(t, mux, http.MethodPut, "/servers/web-01/states/Stopped", "")

	rec := do(t, mux, http.MethodGet, "/servers/web-01/touches?kind=state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("touches: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	touches := decode[[]map[string]any](t, rec)
	if len(touches) != 2 {
		t.Fatalf("expected 2 touches, got %d", len(touches))
	}
	if touches[0]["state"] != "Stopped" || touches[1]["state"] != "Started" {
		t.Errorf("history should be newest first: %v", touches)
	}

	rec = do(t, mux, http.MethodGet, "/servers/web-01/touches?kind=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind: expected 400, got %d", rec.Code)
	}
}
