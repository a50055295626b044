// Package api exposes HTTP handlers for the tracker service.
package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/tracker/internal/auth"
	"example.com/tracker/internal/dashboard"
	"example.com/tracker/internal/domain"
	"example.com/tracker/internal/observability"
	"example.com/tracker/internal/persistence"
)

// Listing page sizes. The cap bounds the slice the stores allocate per page.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service   *domain.Service
	dashboard *dashboard.Cache
}

// NewHandler builds a Handler. dashboard may be nil; summaries then bypass
// the cache.
func NewHandler(service *domain.Service, dashboardCache *dashboard.Cache) *Handler {
	return &Handler{service: service, dashboard: dashboardCache}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/dashboard", h.dashboardSummary)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	id, action, _ := strings.Cut(rest, "/")

	switch {
	case action == "transition" && r.Method == http.MethodPost:
		h.transition(w, r, id)
	case action != "":
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	case r.Method == http.MethodGet:
		h.getActivity(w, r, id)
	case r.Method == http.MethodPatch:
		h.editActivity(w, r, id)
	case r.Method == http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		Name:        req.Name,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	}, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := h.requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	result, err := h.service.RequestTransition(r.Context(), id, actor, domain.Status(req.Status), req.Remarks, requestContext(r))
	if err != nil {
		observability.RecordTransitionOutcome(outcomeLabel(err))
		writeDomainError(w, err)
		return
	}
	observability.RecordTransitionOutcome("ok")

	transitions := make([]string, 0, len(result.AvailableTransitions))
	for _, status := range result.AvailableTransitions {
		transitions = append(transitions, string(status))
	}

	writeJSON(w, http.StatusOK, TransitionResponse{
		Activity:             toActivityView(*result.Activity),
		AvailableTransitions: transitions,
	})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	activity, updates, err := h.service.GetActivityWithHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	views := make([]UpdateView, 0, len(updates))
	for _, update := range updates {
		views = append(views, toUpdateView(update))
	}

	writeJSON(w, http.StatusOK, ActivityWithHistoryResponse{
		Activity: toActivityView(*activity),
		Updates:  views,
	})
}

func (h *Handler) editActivity(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := h.requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req UpdateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	var priority *domain.Priority
	if req.Priority != nil {
		p := domain.Priority(*req.Priority)
		priority = &p
	}

	activity, err := h.service.EditActivity(r.Context(), id, actor, domain.DetailPatch{
		Name:         req.Name,
		Description:  req.Description,
		Priority:     priority,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := h.requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteActivity(r.Context(), id, actor); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	filter := domain.ListFilter{
		CreatorID:  r.URL.Query().Get("creator_id"),
		AssigneeID: r.URL.Query().Get("assignee_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid status filter")
			return
		}
		filter.Status = status
	}

	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), filter, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := h.requireScope(w, r, auth.ScopeActivitiesRead, auth.ScopeActivitiesWrite); !ok {
		return
	}

	var (
		summary domain.Summary
		err     error
	)
	if h.dashboard != nil {
		summary, err = h.dashboard.Summary(r.Context())
	} else {
		summary, err = h.service.StatusSummary(r.Context())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// requireScope resolves the authenticated principal and checks that at least
// one of the scopes is present.
func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (domain.Principal, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) || claims.HasScope(auth.ScopeActivitiesAdmin) {
			return auth.NewPrincipal(claims), true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

func requestContext(r *http.Request) domain.RequestContext {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	return domain.RequestContext{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

func outcomeLabel(err error) string {
	var validation *domain.ValidationError
	var authorization *domain.AuthorizationError
	switch {
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &authorization):
		return "authorization"
	default:
		return "storage"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var authorization *domain.AuthorizationError
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Reason)
	case errors.As(err, &authorization):
		writeError(w, http.StatusForbidden, "forbidden", authorization.Reason)
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// CreateActivityRequest is the payload for POST /v1/activities.
type CreateActivityRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	AssigneeID  string     `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateActivityRequest is the payload for PATCH /v1/activities/{id}.
type UpdateActivityRequest struct {
	Name         *string    `json:"name"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

// TransitionRequest is the payload for POST /v1/activities/{id}/transition.
type TransitionRequest struct {
	Status  string `json:"status"`
	Remarks string `json:"remarks"`
}

// TransitionResponse carries the refreshed activity and the legal next statuses.
type TransitionResponse struct {
	Activity             ActivityView `json:"activity"`
	AvailableTransitions []string     `json:"available_transitions"`
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID  string     `json:"activity_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	CreatorID   string     `json:"creator_id"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UpdateView exposes one audit trail entry.
type UpdateView struct {
	UpdateID       string    `json:"update_id"`
	ActivityID     string    `json:"activity_id"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus *string   `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Remarks        string    `json:"remarks"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActivityWithHistoryResponse pairs an activity with its ordered audit trail.
type ActivityWithHistoryResponse struct {
	Activity ActivityView `json:"activity"`
	Updates  []UpdateView `json:"updates"`
}

// ListActivitiesResponse is a page of activities.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:  activity.ID,
		Name:        activity.Name,
		Description: activity.Description,
		Status:      string(activity.Status),
		Priority:    string(activity.Priority),
		CreatorID:   activity.CreatorID,
		AssigneeID:  activity.AssigneeID,
		DueDate:     activity.DueDate,
		CreatedAt:   activity.CreatedAt,
		UpdatedAt:   activity.UpdatedAt,
	}
}

func toUpdateView(update domain.ActivityUpdate) UpdateView {
	var previous *string
	if update.PreviousStatus != nil {
		value := string(*update.PreviousStatus)
		previous = &value
	}
	return UpdateView{
		UpdateID:       update.ID,
		ActivityID:     update.ActivityID,
		ActorID:        update.ActorID,
		PreviousStatus: previous,
		NewStatus:      string(update.NewStatus),
		Remarks:        update.Remarks,
		IPAddress:      update.IPAddress,
		UserAgent:      update.UserAgent,
		CreatedAt:      update.CreatedAt,
	}
}
