package plan

import (
	"net/http"

	"github.com/frahmantamala/credit-marketplace/internal/transport"
	"github.com/frahmantamala/credit-marketplace/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		catalog:     catalog,
	}
}

// ListPlans handles GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"plans":   h.catalog.All(),
	})
}
