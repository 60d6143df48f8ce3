package masterdata

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bagline-erp/bagline/internal/platform/httpx"
	"github.com/bagline-erp/bagline/internal/shared"
)

type Handler struct {
	logger   *slog.Logger
	registry *Registry
}

func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/selectors/{entity}", h.selectors)
	r.Get("/exists/{entity}", h.exists)
}

// InvalidateOnWrite drops the selector cache for an entity whenever a
// mutating request passes through it. Mounted in front of the masterdata
// CRUD routes so the entity packages stay cache-unaware.
func InvalidateOnWrite(registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				return
			}
			entity := strings.ToLower(strings.SplitN(strings.TrimPrefix(r.URL.Path, "/masterdata/"), "/", 2)[0])
			registry.Invalidate(r.Context(), entity)
		})
	}
}

func (h *Handler) selectors(w http.ResponseWriter, r *http.Request) {
	entity := strings.ToLower(chi.URLParam(r, "entity"))
	rows, err := h.registry.FindActive(r.Context(), entity)
	if err != nil {
		h.logger.Error("selectors", slog.String("entity", entity), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"entity": entity, "options": rows}, "")
}

func (h *Handler) exists(w http.ResponseWriter, r *http.Request) {
	entity := strings.ToLower(chi.URLParam(r, "entity"))
	key := r.URL.Query().Get("key")
	if key == "" {
		httpx.RespondError(w, shared.Validation("key query parameter is required"))
		return
	}
	exists, err := h.registry.Exists(r.Context(), entity, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"entity": entity, "key": key, "exists": exists}, "")
}
