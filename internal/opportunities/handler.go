package opportunities

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

// Handler exposes opportunity endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authzMw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authzMw}
}

// MountRoutes registers opportunity routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireView(authz.ModuleOpportunities))
		r.Get("/", h.list)
		r.Get("/{oppID}", h.get)
	})
	r.Post("/", h.create)
	r.Patch("/{oppID}", h.update)
	r.Delete("/{oppID}", h.remove)
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

	list, pagination, err := h.service.List(r.Context(), actor, actor.Module(authz.ModuleOpportunities), filters, page, perPage)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if list == nil {
		list = []Opportunity{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"opportunities": list, "pagination": pagination})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "oppID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Opportunity ID", err.Error())
		return
	}
	opp, err := h.service.Get(r.Context(), actor, actor.Module(authz.ModuleOpportunities), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opp)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req CreateOpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	opp, err := h.service.Create(r.Context(), actor, actor.Module(authz.ModuleOpportunities), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, opp)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "oppID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Opportunity ID", err.Error())
		return
	}
	var req UpdateOpportunityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	opp, err := h.service.Update(r.Context(), actor, actor.Module(authz.ModuleOpportunities), id, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, opp)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "oppID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Opportunity ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), actor, actor.Module(authz.ModuleOpportunities), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Permission Denied", "action not granted for opportunities")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "opportunity not found")
	case errors.As(err, &verr):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("opportunities handler", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func filtersFromQuery(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Stage:  q.Get("stage"),
	}
	if raw := q.Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.CustomerID = &id
	}
	if raw := q.Get("min_amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ListFilters{}, err
		}
		filters.MinAmount = &v
	}
	if raw := q.Get("max_amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return ListFilters{}, err
		}
		filters.MaxAmount = &v
	}
	if raw := q.Get("close_from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.CloseFrom = &t
	}
	if raw := q.Get("close_until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return ListFilters{}, err
		}
		filters.CloseUntil = &t
	}
	return filters, nil
}
