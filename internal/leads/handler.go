package leads

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

// Handler exposes lead endpoints. The resolved grant is read from the actor
// once per request and handed to the service explicitly.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzMw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMw}
}

// MountRoutes registers lead routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireView(authz.ModuleLeads))
		r.Get("/", h.list)
		r.Get("/{leadID}", h.get)
	})
	r.Post("/", h.create)
	r.Patch("/{leadID}", h.update)
	r.Delete("/{leadID}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	perm := actor.Module(authz.ModuleLeads)

	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	page, perPage := pageParams(r)
	list, pagination, err := h.service.List(r.Context(), actor, perm, filters, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []Lead{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"leads": list, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "leadID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Lead ID", err.Error())
		return
	}
	lead, err := h.service.Get(r.Context(), actor, actor.Module(authz.ModuleLeads), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req CreateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	lead, err := h.service.Create(r.Context(), actor, actor.Module(authz.ModuleLeads), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "leadID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Lead ID", err.Error())
		return
	}
	var req UpdateLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	lead, err := h.service.Update(r.Context(), actor, actor.Module(authz.ModuleLeads), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "leadID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Lead ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), actor, actor.Module(authz.ModuleLeads), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Permission Denied", "action not granted for leads")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "lead not found")
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("leads handler", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}

func filtersFromQuery(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Source: q.Get("source"),
	}
	if tags, ok := q["tag"]; ok {
		filters.Tags = tags
	}
	if raw := q.Get("min_value"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ListFilters{}, err
		}
		filters.MinValue = &v
	}
	if raw := q.Get("max_value"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ListFilters{}, err
		}
		filters.MaxValue = &v
	}
	if raw := q.Get("created_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.CreatedFrom = &t
	}
	if raw := q.Get("created_until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.CreatedUntil = &t
	}
	return filters, nil
}
