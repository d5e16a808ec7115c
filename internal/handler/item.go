package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/campusbid/auction-service/internal/middleware"
	"github.com/campusbid/auction-service/internal/model"
	"github.com/campusbid/auction-service/internal/repository"
)

// ItemHandler serves the seller's item catalogue. Items are the
// things auctions sell; one item backs at most one live auction.
type ItemHandler struct {
	Items *repository.ItemRepo
}

func NewItemHandler(items *repository.ItemRepo) *ItemHandler {
	return &ItemHandler{Items: items}
}

type createItemReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Create registers a new item owned by the caller, initially listed.
func (h *ItemHandler) Create(c echo.Context) error {
	p, _ := middleware.Caller(c)

	var req createItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	it := &model.Item{
		ID:          uuid.NewString(),
		SellerID:    p.ID,
		Title:       req.Title,
		Description: req.Description,
		Status:      model.ItemListed,
		CreatedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Items.Create(ctx, it); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create item failed"})
	}
	return c.JSON(http.StatusCreated, it)
}

// ListMine returns every item the caller owns, any status.
func (h *ItemHandler) ListMine(c echo.Context) error {
	p, _ := middleware.Caller(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	items, err := h.Items.ListBySeller(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list items failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
