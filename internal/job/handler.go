package job

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/middleware"
)

type Handler struct {
	engine *Engine
}

func NewHandler(e *Engine) *Handler {
	return &Handler{engine: e}
}

// Create handles POST /jobs.
func (h *Handler) Create(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	j, err := h.engine.Create(c.Request().Context(), userID, in)
	if err != nil {
		// Payment failures still created the job; return it alongside the
		// error so the client can offer a retry.
		if j != nil && (apperr.Is(err, apperr.KindPaymentTransient) || apperr.Is(err, apperr.KindPaymentPermanent)) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"job": j, "error": err.Error(), "code": string(apperr.KindOf(err))})
		}
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"job": j})
}

// Publish handles POST /jobs/:id/publish for drafts.
func (h *Handler) Publish(c echo.Context) error {
	userID, jobID, ok := h.subject(c)
	if !ok {
		return nil
	}
	var in struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	j, err := h.engine.Publish(c.Request().Context(), userID, jobID, in.PaymentMethodID)
	if err != nil {
		if j != nil && (apperr.Is(err, apperr.KindPaymentTransient) || apperr.Is(err, apperr.KindPaymentPermanent)) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"job": j, "error": err.Error(), "code": string(apperr.KindOf(err))})
		}
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// RetryPayment handles POST /jobs/:id/retry-payment.
func (h *Handler) RetryPayment(c echo.Context) error {
	userID, jobID, ok := h.subject(c)
	if !ok {
		return nil
	}
	var in struct {
		PaymentMethodID string `json:"payment_method_id"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	j, err := h.engine.RetryPayment(c.Request().Context(), userID, jobID, in.PaymentMethodID)
	if err != nil {
		if j != nil && (apperr.Is(err, apperr.KindPaymentTransient) || apperr.Is(err, apperr.KindPaymentPermanent)) {
			return c.JSON(http.StatusPaymentRequired, echo.Map{"job": j, "error": err.Error(), "code": string(apperr.KindOf(err))})
		}
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// Get handles GET /jobs/:id.
func (h *Handler) Get(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	j, err := h.engine.Get(c.Request().Context(), jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// ListOpen handles GET /jobs.
func (h *Handler) ListOpen(c echo.Context) error {
	jobs, err := h.engine.ListOpen(c.Request().Context())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

// Mine handles GET /jobs/mine.
func (h *Handler) Mine(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	jobs, err := h.engine.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"jobs": jobs})
}

// Accept handles POST /applications/:id/accept.
func (h *Handler) Accept(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid application id"})
	}
	j, err := h.engine.AcceptApplication(c.Request().Context(), userID, appID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// Start handles POST /jobs/:id/start.
func (h *Handler) Start(c echo.Context) error {
	userID, jobID, ok := h.subject(c)
	if !ok {
		return nil
	}
	j, err := h.engine.Start(c.Request().Context(), userID, jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// Complete handles POST /jobs/:id/complete.
func (h *Handler) Complete(c echo.Context) error {
	userID, jobID, ok := h.subject(c)
	if !ok {
		return nil
	}
	var in struct {
		Override bool `json:"override"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	j, err := h.engine.Complete(c.Request().Context(), userID, jobID, in.Override)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// Cancel handles POST /jobs/:id/cancel.
func (h *Handler) Cancel(c echo.Context) error {
	userID, jobID, ok := h.subject(c)
	if !ok {
		return nil
	}
	var in struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	j, err := h.engine.Cancel(c.Request().Context(), userID, middleware.Role(c), jobID, in.Reason)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"job": j})
}

// subject pulls the caller and the :id job out of the request, writing
// the failure response itself when either is missing.
func (h *Handler) subject(c echo.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, jobID, true
}
