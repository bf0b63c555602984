package products

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockledger/internal/masterdata/shared"
	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	base "github.com/odyssey-erp/stockledger/internal/shared"
)

// Handler serves the product catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a product handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers product routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
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
	httpx.JSON(w, http.StatusOK, shared.ListResponse[Product]{
		Items:      items,
		Pagination: base.NewPagination(filters.Limit, filters.Offset, total),
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !shared.Decode(w, r, h.validator, &req) {
		return
	}
	product, err := h.service.Create(r.Context(), req.product())
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+product.ID.String())
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := shared.PathID(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if !shared.Decode(w, r, h.validator, &req) {
		return
	}
	product, err := h.service.Update(r.Context(), id, req.changes())
	if err != nil {
		shared.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
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
