// Package admin exposes the operator surface: platform stats, user
// suspension and the full job list. Dispute resolution lives in the
// dispute package and is mounted under the same admin group.
package admin

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(s store.Store) *Handler {
	return &Handler{store: s}
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	jobs, err := h.store.ListJobs(ctx)
	if err != nil {
		return apperr.Respond(c, err)
	}
	byStatus := map[models.JobStatus]int{}
	var escrowedCents int64
	for _, j := range jobs {
		byStatus[j.Status]++
	}
	for _, j := range jobs {
		if j.Status == models.StatusOpen || j.Status == models.StatusAssigned ||
			j.Status == models.StatusInProgress || j.Status == models.StatusPendingPayout {
			escrowedCents += j.AmountCents
		}
	}
	users, err := h.store.ListUsers(ctx)
	if err != nil {
		return apperr.Respond(c, err)
	}
	openDisputes, err := h.store.ListDisputes(ctx, models.DisputeOpen)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"jobs_total":     len(jobs),
		"jobs_by_status": byStatus,
		"escrowed_cents": escrowedCents,
		"users_total":    len(users),
		"open_disputes":  len(openDisputes),
	})
}

// Users handles GET /admin/users.
func (h *Handler) Users(c echo.Context) error {
	users, err := h.store.ListUsers(c.Request().Context())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// Jobs handles GET /admin/jobs, optionally filtered by status.
func (h *Handler) Jobs(c echo.Context) error {
	ctx := c.Request().Context()
	if status := c.QueryParam("status"); status != "" {
		jobs, err := h.store.ListJobsByStatus(ctx, models.JobStatus(status))
		if err != nil {
			return apperr.Respond(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
	}
	jobs, err := h.store.ListJobs(ctx)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

// Suspend handles POST /admin/users/:id/suspend.
func (h *Handler) Suspend(c echo.Context) error {
	return h.setActive(c, false, "user suspended")
}

// Activate handles POST /admin/users/:id/activate.
func (h *Handler) Activate(c echo.Context) error {
	return h.setActive(c, true, "user activated")
}

func (h *Handler) setActive(c echo.Context, active bool, msg string) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	if err := h.store.SetUserActive(c.Request().Context(), userID, active); err != nil {
		return apperr.Respond(c, apperr.NotFound("user %s not found", userID))
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}
