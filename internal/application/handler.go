package application

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

// Apply handles POST /jobs/:id/applications.
func (h *Handler) Apply(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	var in struct {
		Message          string `json:"message"`
		ProposedRate     int64  `json:"proposed_rate_cents"`
		ExpectedDuration string `json:"expected_duration"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	app, err := h.manager.Apply(c.Request().Context(), userID, jobID, in.Message, in.ProposedRate, in.ExpectedDuration)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"application": app})
}

// List handles GET /jobs/:id/applications, poster only.
func (h *Handler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	apps, err := h.manager.List(c.Request().Context(), userID, jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"applications": apps})
}

// Reject handles POST /applications/:id/reject.
func (h *Handler) Reject(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid application id"})
	}
	app, err := h.manager.Reject(c.Request().Context(), userID, appID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"application": app})
}
