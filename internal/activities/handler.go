package activities

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Handler exposes activity endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzMw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMw}
}

// MountRoutes registers activity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireView(authz.ModuleActivities))
		r.Get("/", h.list)
		r.Get("/{activityID}", h.get)
	})
	r.Post("/", h.create)
	r.Patch("/{activityID}", h.update)
	r.Delete("/{activityID}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	list, pagination, err := h.service.List(r.Context(), actor, actor.Module(authz.ModuleActivities), filters, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []Activity{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"activities": list, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Activity ID", err.Error())
		return
	}
	activity, err := h.service.Get(r.Context(), actor, actor.Module(authz.ModuleActivities), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, activity)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req CreateActivityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	activity, err := h.service.Create(r.Context(), actor, actor.Module(authz.ModuleActivities), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, activity)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Activity ID", err.Error())
		return
	}
	var req UpdateActivityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	activity, err := h.service.Update(r.Context(), actor, actor.Module(authz.ModuleActivities), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, activity)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Activity ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), actor, actor.Module(authz.ModuleActivities), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Permission Denied", "action not granted for activities")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "activity not found")
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("activities handler", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func filtersFromQuery(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Search:        q.Get("search"),
		Type:          q.Get("type"),
		RelatedModule: q.Get("related_module"),
	}
	if raw := q.Get("done"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.Done = &v
	}
	if raw := q.Get("related_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.RelatedID = &id
	}
	if raw := q.Get("due_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.DueFrom = &t
	}
	if raw := q.Get("due_until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.DueUntil = &t
	}
	return filters, nil
}
