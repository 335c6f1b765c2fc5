// Package user serves profiles and the in-app notification feed.
package user

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/middleware"
	"github.com/gigvault/gigvault/internal/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

// Get handles GET /users/:id.
func (h *Handler) Get(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	u, err := h.store.GetUser(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, apperr.NotFound("user %s not found", userID))
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

type UpdateRequest struct {
	Name          *string  `json:"name"`
	Bio           *string  `json:"bio"`
	Skills        []string `json:"skills"`
	PayoutAccount *string  `json:"payout_account"`
}

// Update handles PATCH /users/me. Only the profile fields; email, role and
// credentials do not change here.
func (h *Handler) Update(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	req := new(UpdateRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	u, err := h.store.GetUser(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if req.Name != nil {
		if *req.Name == "" {
			return apperr.Respond(c, apperr.Validation("name cannot be empty"))
		}
		u.Name = *req.Name
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.Skills != nil {
		u.Skills = req.Skills
	}
	if req.PayoutAccount != nil {
		u.PayoutAccount = *req.PayoutAccount
	}
	if err := h.store.UpdateUser(c.Request().Context(), u); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// Notifications handles GET /users/me/notifications, newest first.
func (h *Handler) Notifications(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.store.ListNotifications(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": items})
}
