package batch

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bagline-erp/bagline/internal/platform/httpx"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/barcode/{barcode}", h.showByBarcode)
	r.Get("/{id}", h.show)
	r.Post("/{id}/allocate", h.allocate)
	r.Post("/{id}/restore", h.restore)
	r.Post("/{id}/hold", h.hold)
	r.Post("/{id}/unhold", h.unhold)
	r.Post("/{id}/mark-shipped", h.markShipped)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Post("/{id}/reactivate", h.reactivate)
	r.Delete("/{id}", h.purge)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{
		ListFilters: shared.ListFilters{
			Page:       page,
			Limit:      limit,
			Search:     q.Get("search"),
			ActiveOnly: q.Get("active") == "true",
		},
		Status: Status(strings.ToUpper(q.Get("status"))),
	}
	if id, err := uuid.Parse(q.Get("supplier_id")); err == nil {
		filters.SupplierID = id
	}
	if id, err := uuid.Parse(q.Get("item_id")); err == nil {
		filters.ItemID = id
	}

	batches, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.logger.Error("list batches", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"batches": batches, "total": total}, "")
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid batch id"))
		return
	}
	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, b, "")
}

func (h *Handler) showByBarcode(w http.ResponseWriter, r *http.Request) {
	barcode := strings.ToUpper(chi.URLParam(r, "barcode"))
	b, err := h.service.GetByBarcode(r.Context(), barcode)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, b, "")
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validation("%v", err))
		return
	}
	b, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, b, "batch created")
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	h.quantityOp(w, r, h.service.Allocate, "bags allocated")
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.quantityOp(w, r, h.service.Restore, "bags restored")
}

func (h *Handler) quantityOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID, qty int64) (Batch, error), message string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid batch id"))
		return
	}
	var req QuantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validation("invalid request body"))
		return
	}
	b, err := op(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, b, message)
}

func (h *Handler) hold(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.service.SetHold, "batch placed on hold")
}

func (h *Handler) unhold(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.service.ClearHold, "hold cleared")
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	h.statusOp(w, r, h.service.MarkShipped, "batch marked shipped")
}

func (h *Handler) statusOp(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, id uuid.UUID) (Batch, error), message string) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid batch id"))
		return
	}
	b, err := op(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, b, message)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid batch id"))
		return
	}
	if active {
		err = h.service.Reactivate(r.Context(), id)
	} else {
		err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nil, "batch updated")
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.Validation("invalid batch id"))
		return
	}
	if err := h.service.Purge(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, nil, "batch deleted")
}
