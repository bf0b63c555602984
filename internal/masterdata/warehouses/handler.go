package warehouses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	base "github.com/odyssey-erp/stockledger/internal/shared"
)

// Handler serves warehouse endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/warehouses", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := shared.ParseListFilters(r.URL.Query())
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Warehouse]{
		Items:      items,
		Pagination: base.NewPagination(filters.Limit, filters.Offset, total),
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if !shared.Decode(w, r, h.validator, &req) {
		return
	}
	warehouse, err := h.service.Create(r.Context(), req.warehouse())
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/warehouses/"+warehouse.ID.String())
	httpx.JSON(w, http.StatusCreated, warehouse)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r)
	if !ok {
		return
	}
	warehouse, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r)
	if !ok {
		return
	}
	var req warehouseRequest
	if !shared.Decode(w, r, h.validator, &req) {
		return
	}
	warehouse, err := h.service.Update(r.Context(), id, req.warehouse())
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
