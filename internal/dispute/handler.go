package dispute

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/middleware"
)

type Handler struct {
	manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{manager: m}
}

// Open handles POST /jobs/:id/disputes.
func (h *Handler) Open(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	var in OpenInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	d, err := h.manager.Open(c.Request().Context(), userID, jobID, in)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"dispute": d})
}

// Get handles GET /disputes/:id.
func (h *Handler) Get(c echo.Context) error {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid dispute id"})
	}
	d, err := h.manager.Get(c.Request().Context(), disputeID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"dispute": d})
}

// List handles GET /admin/disputes?status=open.
func (h *Handler) List(c echo.Context) error {
	disputes, err := h.manager.List(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"disputes": disputes})
}

// StartReview handles POST /admin/disputes/:id/review.
func (h *Handler) StartReview(c echo.Context) error {
	adminID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid dispute id"})
	}
	d, err := h.manager.StartReview(c.Request().Context(), adminID, disputeID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"dispute": d})
}

// Resolve handles POST /admin/disputes/:id/resolve.
func (h *Handler) Resolve(c echo.Context) error {
	adminID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid dispute id"})
	}
	var in ResolveInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	d, err := h.manager.Resolve(c.Request().Context(), adminID, disputeID, in)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"dispute": d})
}
