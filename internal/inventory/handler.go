package inventory

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/stockledger/internal/platform/httpx"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	queries   *QueryService
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, queries *QueryService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, queries: queries, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.listDocuments)
		r.Post("/", h.createDocument)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getDocument)
			r.Patch("/", h.patchDocument)
			r.Post("/lines", h.addLine)
			r.Put("/lines/{lineID}", h.updateLine)
			r.Delete("/lines/{lineID}", h.removeLine)
			r.Post("/status", h.setStatus)
			r.Post("/validate", h.validate)
			r.Post("/cancel", h.cancel)
		})
	})
	r.Get("/balances", h.getBalance)
	r.Get("/low-stock", h.lowStock)
	r.Get("/dashboard", h.dashboard)
	r.Get("/ledger", h.ledger)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	var req createDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	lines := make([]LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = l.input()
	}
	doc, err := h.service.CreateDraft(r.Context(), CreateDraftInput{
		Kind: Kind(req.Kind),
		Header: Header{
			WarehouseID:     req.WarehouseID,
			FromWarehouseID: req.FromWarehouseID,
			ToWarehouseID:   req.ToWarehouseID,
			PartnerName:     req.PartnerName,
			Reason:          req.Reason,
			Notes:           req.Notes,
		},
		Lines:          lines,
		ActorID:        actor,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/documents/"+doc.ID.String())
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := shared.ParsePage(q)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit and offset must be non-negative integers")
		return
	}
	filter := DocumentFilter{Limit: limit, Offset: offset}
	if raw := q.Get("kind"); raw != "" {
		kind, err := ParseKind(raw)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		filter.Kind = kind
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			status, err := ParseStatus(strings.TrimSpace(part))
			if err != nil {
				h.respondError(w, r, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	docs, total, err := h.service.ListDocuments(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[SourceDocument]{Items: docs, Pagination: shared.NewPagination(limit, offset, total)})
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) patchDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req patchDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.service.UpdateHeader(r.Context(), id, HeaderPatch{PartnerName: req.PartnerName, Reason: req.Reason, Notes: req.Notes})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.service.AddLine(r.Context(), id, req.input())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathUUID(w, r, "lineID")
	if !ok {
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	line, err := h.service.UpdateLine(r.Context(), id, lineID, req.input())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireActor(w, r); !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	lineID, ok := h.pathUUID(w, r, "lineID")
	if !ok {
		return
	}
	if err := h.service.RemoveLine(r.Context(), id, lineID); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.service.SetStatus(r.Context(), id, Status(req.Status), actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.service.Validate(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.service.Cancel(r.Context(), id, actor)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := uuid.Parse(q.Get("product_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id must be a UUID")
		return
	}
	warehouseID, err := uuid.Parse(q.Get("warehouse_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "warehouse_id must be a UUID")
		return
	}
	qty, err := h.service.GetBalance(r.Context(), productID, warehouseID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceResponse{ProductID: productID, WarehouseID: warehouseID, Quantity: qty})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.queries.LowStock(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.queries.Dashboard(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, dash)
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := shared.ParsePage(q)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit and offset must be non-negative integers")
		return
	}
	filter := LedgerFilter{Limit: limit, Offset: offset, ReferenceNumber: q.Get("reference")}
	for name, target := range map[string]*uuid.UUID{"product_id": &filter.ProductID, "warehouse_id": &filter.WarehouseID} {
		if raw := q.Get(name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a UUID")
				return
			}
			*target = id
		}
	}
	entries, total, err := h.queries.LedgerHistory(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[LedgerHistoryEntry]{Items: entries, Pagination: shared.NewPagination(limit, offset, total)})
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := shared.ActorFromContext(r.Context())
	if actor == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.ErrActorRequired.Error()+": set "+shared.ActorHeader)
		return "", false
	}
	return actor, true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			httpx.ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed",
				fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()),
				map[string]any{"field": fe.Field(), "rule": fe.Tag()})
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid  *ValidationError
		state    *InvalidStateError
		short    *InsufficientStockError
		conflict *ConflictError
	)
	switch {
	case errors.As(err, &invalid):
		httpx.ProblemWithMeta(w, http.StatusBadRequest, "Validation Failed", invalid.Error(), map[string]any{"field": invalid.Field})
	case errors.As(err, &state):
		httpx.ProblemWithMeta(w, http.StatusConflict, "Invalid State", state.Error(), map[string]any{"status": state.Status})
	case errors.As(err, &short):
		httpx.ProblemWithMeta(w, http.StatusUnprocessableEntity, "Insufficient Stock", short.Error(), map[string]any{
			"product_id":   short.ProductID,
			"warehouse_id": short.WarehouseID,
			"requested":    short.Requested,
			"available":    short.Available,
		})
	case errors.As(err, &conflict):
		w.Header().Set("Retry-After", "1")
		httpx.Problem(w, http.StatusServiceUnavailable, "Conflict", "concurrent update, retry the request")
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, err.Error()))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrDuplicate, err.Error()))
	default:
		h.logger.Error("inventory request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
