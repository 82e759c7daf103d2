package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"orbix/internal/api"
	"orbix/internal/services"
	"orbix/internal/store"
	"orbix/internal/workflow"
)

const maxRequestBody = 1 << 20

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Checks:       api.FromChecks(s.daemon.Checks(r.Context())),
	})
}

func (s *apiServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.daemon.service.Dashboard(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dash)
}

func (s *apiServer) handleSources(w http.ResponseWriter, r *http.Request) {
	items, err := s.daemon.service.Sources(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Source]{Items: items})
}

func (s *apiServer) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req api.AddSourceRequest
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.daemon.service.AddSource(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, src)
}

func (s *apiServer) handleSetSourceEnabled(w http.ResponseWriter, r *http.Request) {
	var req api.SetEnabledRequest
	if !s.decode(w, r, &req) {
		return
	}
	src, err := s.daemon.service.SetSourceEnabled(r.Context(), chi.URLParam(r, "id"), req.Enabled)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, src)
}

func (s *apiServer) handleStories(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filter(w, r)
	if !ok {
		return
	}
	items, err := s.daemon.service.Stories(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Story]{Items: items})
}

func (s *apiServer) handleReviews(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filter(w, r)
	if !ok {
		return
	}
	items, err := s.daemon.service.Reviews(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Review]{Items: items})
}

func (s *apiServer) handleApproveReview(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.ApproveReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleRejectReview(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.RejectReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleEditHook(w http.ResponseWriter, r *http.Request) {
	var req api.EditHookRequest
	if !s.decode(w, r, &req) {
		return
	}
	item, err := s.daemon.service.EditReviewHook(r.Context(), chi.URLParam(r, "id"), req.Hook)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleRenders(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filter(w, r)
	if !ok {
		return
	}
	items, err := s.daemon.service.Renders(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Render]{Items: items})
}

func (s *apiServer) handleRender(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.Render(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleRetryRender(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.RetryRender(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handlePublishes(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.filter(w, r)
	if !ok {
		return
	}
	items, err := s.daemon.service.Publishes(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Publish]{Items: items})
}

func (s *apiServer) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	points, err := s.daemon.service.Analytics(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.AnalyticsPoint]{Items: points})
}

func (s *apiServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	items, err := s.daemon.service.Settings(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ListResponse[api.Setting]{Items: items})
}

func (s *apiServer) handleSetting(w http.ResponseWriter, r *http.Request) {
	item, err := s.daemon.service.Setting(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req api.SetSettingRequest
	if !s.decode(w, r, &req) {
		return
	}
	item, err := s.daemon.service.UpdateSetting(r.Context(), chi.URLParam(r, "key"), req.Value)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleRunStage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	result, err := s.daemon.workflow.RunNow(r.Context(), name)
	switch {
	case errors.Is(err, workflow.ErrUnknownStage):
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown stage %q", name), "not_found")
		return
	case errors.Is(err, workflow.ErrBusy):
		s.writeError(w, http.StatusConflict, fmt.Sprintf("stage %q is already running", name), "busy")
		return
	case err != nil:
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResult(result))
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "validation")
		return false
	}
	return true
}

// filter reads ?status=, ?since= (RFC3339) and ?limit= from the query.
func (s *apiServer) filter(w http.ResponseWriter, r *http.Request) (store.ListFilter, bool) {
	query := r.URL.Query()
	f := store.ListFilter{Status: strings.ToUpper(strings.TrimSpace(query.Get("status")))}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "filter", "since must be RFC3339", err))
			return f, false
		}
		f.Since = since
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeFailure(w, r, services.Wrap(services.ErrValidation, "api", "filter", "limit must be a non-negative integer", err))
			return f, false
		}
		f.Limit = limit
	}
	return f, true
}
