package task

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/middleware"
)

type Handler struct {
	tracker *Tracker
}

func NewHandler(t *Tracker) *Handler {
	return &Handler{tracker: t}
}

// Add handles POST /jobs/:id/tasks.
func (h *Handler) Add(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	var in struct {
		Description string `json:"description"`
		Location    string `json:"location"`
		BonusCents  int64  `json:"bonus_cents"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	tk, err := h.tracker.Add(c.Request().Context(), userID, jobID, in.Description, in.Location, in.BonusCents)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"task": tk})
}

// Remove handles DELETE /tasks/:id.
func (h *Handler) Remove(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	if err := h.tracker.Remove(c.Request().Context(), userID, taskID); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "task removed"})
}

// Complete handles POST /tasks/:id/complete.
func (h *Handler) Complete(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task id"})
	}
	tk, progress, err := h.tracker.Complete(c.Request().Context(), userID, taskID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": tk, "progress": progress})
}

// List handles GET /jobs/:id/tasks.
func (h *Handler) List(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	tasks, err := h.tracker.List(c.Request().Context(), jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	progress, err := h.tracker.Progress(c.Request().Context(), jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks, "progress": progress})
}
