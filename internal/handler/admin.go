package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/auction"
	"github.com/campusbid/auction-service/internal/middleware"
	"github.com/campusbid/auction-service/internal/model"
	"github.com/campusbid/auction-service/internal/repository"
)

// AdminHandler serves the moderation surface. Every route is gated
// by the admin role in the router.
type AdminHandler struct {
	Users   *repository.UserRepo
	Ledger  *repository.Ledger
	Settler *auction.Settler
}

func NewAdminHandler(users *repository.UserRepo, ledger *repository.Ledger, settler *auction.Settler) *AdminHandler {
	return &AdminHandler{Users: users, Ledger: ledger, Settler: settler}
}

// Stats returns marketplace-wide counters for the dashboard.
func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	s, err := h.Ledger.Stats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": s})
}

// ListUsers pages through accounts, optionally filtered by role.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	users, err := h.Users.List(ctx, c.QueryParam("role"), limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list users failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

type roleReq struct {
	Role string `json:"role"`
}

// UpdateRole changes an account's role.
func (h *AdminHandler) UpdateRole(c echo.Context) error {
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	switch req.Role {
	case model.RoleBuyer, model.RoleSeller, model.RoleAdmin:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.UpdateRole(ctx, c.Param("id"), req.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update role failed"})
	}

	p, _ := middleware.Caller(c)
	log.WithFields(log.Fields{"user_id": c.Param("id"), "role": req.Role, "admin_id": p.ID}).
		Info("user role changed")
	return c.NoContent(http.StatusNoContent)
}

// CancelAuction aborts an auction without a winner and relists the
// item. Unlike end, no settlement runs and no event is broadcast.
func (h *AdminHandler) CancelAuction(c echo.Context) error {
	p, _ := middleware.Caller(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Settler.Cancel(ctx, c.Param("id"), p); err != nil {
		return domainErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "auction cancelled"})
}
