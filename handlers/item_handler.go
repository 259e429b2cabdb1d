package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"github.com/sheerif/eticketsv10/internal/status"
	"github.com/sheerif/eticketsv10/models"
	"github.com/sheerif/eticketsv10/store"
	"github.com/sheerif/eticketsv10/utils"
)

// ItemHandler manages the ticket tiers the issuer binds tickets to.
type ItemHandler struct {
	store store.TicketStore
}

func NewItemHandler(st store.TicketStore) *ItemHandler {
	return &ItemHandler{store: st}
}

func (h *ItemHandler) Create(c echo.Context) error {
	var req struct {
		Name     string `json:"name"`
		PriceEUR string `json:"price_eur"`
		IsActive *bool  `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "name required"})
	}

	price := decimal.Zero
	if req.PriceEUR != "" {
		var err error
		price, err = decimal.NewFromString(req.PriceEUR)
		if err != nil || price.IsNegative() {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid price"})
		}
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}

	item := &models.Item{
		ID:     id,
		Name:   req.Name,
		Price:  price,
		Active: req.IsActive == nil || *req.IsActive,
	}
	if err := h.store.CreateItem(c.Request().Context(), item); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *ItemHandler) List(c echo.Context) error {
	items, err := h.store.ListItems(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Delete surfaces protect-on-delete: tiers with issued tickets stay.
func (h *ItemHandler) Delete(c echo.Context) error {
	id := c.PathParam("id")

	err := h.store.DeleteItem(c.Request().Context(), id)
	switch {
	case errors.Is(err, status.ErrItemNotFound):
		return c.JSON(http.StatusNotFound, map[string]any{"error": "unknown item"})
	case errors.Is(err, status.ErrItemReferenced):
		return c.JSON(http.StatusConflict, map[string]any{"error": "item has issued tickets"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
	return c.NoContent(http.StatusNoContent)
}
