package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orbix/internal/api"
	"orbix/internal/config"
	"orbix/internal/logging"
	"orbix/internal/settings"
	"orbix/internal/stage"
	"orbix/internal/store"
	"orbix/internal/testsupport"
	"orbix/internal/workflow"
)

type blockingStage struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingStage) Name() string { return "slow" }

func (s *blockingStage) Run(ctx context.Context, _ settings.Settings) (stage.Result, error) {
	close(s.started)
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return stage.Result{}, nil
}

func (s *blockingStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("slow") }

type okStage struct{}

func (okStage) Name() string { return "noop" }

func (okStage) Run(context.Context, settings.Settings) (stage.Result, error) {
	var r stage.Result
	r.Succeed()
	return r, nil
}

func (okStage) HealthCheck(context.Context) stage.Health { return stage.Healthy("noop") }

func newTestServer(t *testing.T, mutate func(*config.Config)) (*apiServer, *store.Store, *workflow.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	st := testsupport.MustOpenStore(t, cfg)
	wf := workflow.NewManager(cfg, st, logging.NewNop(), nil)
	if err := wf.Register(okStage{}, workflow.Schedule{Every: time.Hour}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, err := New(cfg, st, logging.NewNop(), wf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.server, st, wf
}

func do(t *testing.T, srv *apiServer, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIDashboardAndSources(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	testsupport.SeedSource(t, st, "https://example.com/feed", store.SourceRSS)

	w := do(t, srv, http.MethodGet, "/api/dashboard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", w.Code, w.Body.String())
	}
	dash := decodeBody[api.Dashboard](t, w)
	if dash.DailyCap != settings.Defaults().DailyCap {
		t.Fatalf("unexpected daily cap %d", dash.DailyCap)
	}

	w = do(t, srv, http.MethodGet, "/api/sources", "")
	list := decodeBody[api.ListResponse[api.Source]](t, w)
	if len(list.Items) != 1 || !list.Items[0].Enabled {
		t.Fatalf("unexpected sources %+v", list.Items)
	}

	w = do(t, srv, http.MethodPut, "/api/sources/"+list.Items[0].ID+"/enabled", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status %d: %s", w.Code, w.Body.String())
	}
	if src := decodeBody[api.Source](t, w); src.Enabled {
		t.Fatal("expected source disabled")
	}

	w = do(t, srv, http.MethodPut, "/api/sources/missing/enabled", `{"enabled":true}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/sources", `{"name":"Blog","url":"https://blog.test","type":"html"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("add status %d: %s", w.Code, w.Body.String())
	}
	w = do(t, srv, http.MethodPost, "/api/sources", `{"name":"Bad","url":"https://bad.test","type":"ftp"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad type, got %d", w.Code)
	}
}

func TestAPIReviewActions(t *testing.T) {
	srv, st, _ := newTestServer(t, nil)
	_, _, item := testsupport.SeedApprovedStory(t, st, "Chip breakthrough", true)

	w := do(t, srv, http.MethodGet, "/api/reviews?status=pending", "")
	list := decodeBody[api.ListResponse[api.Review]](t, w)
	if len(list.Items) != 1 || list.Items[0].ID != item.ID {
		t.Fatalf("unexpected reviews %+v", list.Items)
	}

	w = do(t, srv, http.MethodPut, "/api/reviews/"+item.ID+"/hook", `{"hook":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank hook, got %d", w.Code)
	}
	if resp := decodeBody[api.ErrorResponse](t, w); resp.Kind != "validation" {
		t.Fatalf("unexpected error kind %q", resp.Kind)
	}

	w = do(t, srv, http.MethodPut, "/api/reviews/"+item.ID+"/hook", `{"hook":"New hook"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("edit status %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodPost, "/api/reviews/"+item.ID+"/approve", "")
	if w.Code != http.StatusOK {
		t.Fatalf("approve status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[api.Review](t, w); got.Status != string(store.ReviewApproved) {
		t.Fatalf("expected approved, got %q", got.Status)
	}

	w = do(t, srv, http.MethodPost, "/api/reviews/"+item.ID+"/reject", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 rejecting a decided item, got %d", w.Code)
	}
	w = do(t, srv, http.MethodPost, "/api/reviews/nope/approve", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAPIFilterValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	for _, path := range []string{"/api/renders?limit=abc", "/api/stories?since=yesterday"} {
		w := do(t, srv, http.MethodGet, path, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
	w := do(t, srv, http.MethodGet, "/api/renders?status=failed&limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAPIRejectsUnknownFields(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	w := do(t, srv, http.MethodPut, "/api/settings/daily_cap", `{"value":"3","extra":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPISettings(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := do(t, srv, http.MethodPut, "/api/settings/daily_cap", `{"value":"7"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[api.Setting](t, w); got.Value != "7" || !got.Stored {
		t.Fatalf("unexpected setting %+v", got)
	}

	w = do(t, srv, http.MethodPut, "/api/settings/daily_cap", `{"value":"lots"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = do(t, srv, http.MethodGet, "/api/settings/unknown", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = do(t, srv, http.MethodGet, "/api/settings", "")
	list := decodeBody[api.ListResponse[api.Setting]](t, w)
	if len(list.Items) != len(settings.Definitions()) {
		t.Fatalf("expected %d settings, got %d", len(settings.Definitions()), len(list.Items))
	}
}

func TestAPIRunStage(t *testing.T) {
	srv, _, wf := newTestServer(t, nil)

	w := do(t, srv, http.MethodPost, "/api/stages/noop/run", "")
	if w.Code != http.StatusOK {
		t.Fatalf("run status %d: %s", w.Code, w.Body.String())
	}
	if got := decodeBody[api.StageResult](t, w); got.Succeeded != 1 {
		t.Fatalf("unexpected result %+v", got)
	}

	w = do(t, srv, http.MethodPost, "/api/stages/bogus/run", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	slow := &blockingStage{started: make(chan struct{}), release: make(chan struct{})}
	if err := wf.Register(slow, workflow.Schedule{Every: time.Hour}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = wf.RunNow(context.Background(), "slow")
	}()
	<-slow.started
	w = do(t, srv, http.MethodPost, "/api/stages/slow/run", "")
	close(slow.release)
	<-done
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d", w.Code)
	}
}

func TestAPITokenAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.API.Token = "secret"
		cfg.API.AllowedOrigins = []string{"https://admin.test"}
	})

	if w := do(t, srv, http.MethodGet, "/api/dashboard", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/dashboard", "", "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	w := do(t, srv, http.MethodGet, "/api/dashboard", "",
		"Authorization", "Bearer secret",
		"Origin", "https://admin.test",
	)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.test" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
}

func TestAPIUnknownRoute(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	if w := do(t, srv, http.MethodGet, "/api/nothing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, "/api/sources", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
