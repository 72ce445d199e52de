package quote

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/noah-isme/cafe-pricing/internal/common"
)

// Handler exposes the menu, slot table and quote endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Menu handles GET /api/v1/menu.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Menu()})
}

// Slots handles GET /api/v1/slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Slots()})
}

// Create handles POST /api/v1/quotes.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		var details any
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			details = map[string]any{"offset": syntaxErr.Offset}
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", details)
		return
	}
	res, err := h.service.Quote(r.Context(), req)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}
