package category

import (
	"context"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal/transport"
)

type ServiceAPI interface {
	Catalog(ctx context.Context) ([]Option, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{BaseHandler: baseHandler, Service: service}
}

// GetCategories serves the selectable part of the catalog, ordered by name.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	options, err := h.Service.Catalog(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, CatalogResponse{Categories: options, Total: len(options)})
}
