package payment

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/middleware"
)

// SignatureHeader carries the processor's HMAC over the raw webhook body.
const SignatureHeader = "X-Processor-Signature"

type Handler struct {
	orch   *Orchestrator
	ledger *escrow.Ledger
}

func NewHandler(o *Orchestrator, l *escrow.Ledger) *Handler {
	return &Handler{orch: o, ledger: l}
}

// BeginSetup handles POST /payment-methods/setup.
func (h *Handler) BeginSetup(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	intent, err := h.orch.BeginSavePaymentMethod(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"setup_intent": intent})
}

// ConfirmSetup handles POST /payment-methods/confirm.
func (h *Handler) ConfirmSetup(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var in struct {
		IntentID string `json:"intent_id"`
		Token    string `json:"token"`
	}
	if err := c.Bind(&in); err != nil || in.IntentID == "" || in.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "intent_id and token are required"})
	}
	method, err := h.orch.ConfirmSavePaymentMethod(c.Request().Context(), userID, in.IntentID, in.Token)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"payment_method": method})
}

// List handles GET /payment-methods.
func (h *Handler) List(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	methods, err := h.orch.ListPaymentMethods(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"payment_methods": methods})
}

// SetDefault handles POST /payment-methods/:id/default.
func (h *Handler) SetDefault(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.orch.SetDefaultPaymentMethod(c.Request().Context(), userID, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "default updated"})
}

// Delete handles DELETE /payment-methods/:id.
func (h *Handler) Delete(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.orch.DeletePaymentMethod(c.Request().Context(), userID, c.Param("id")); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "payment method removed"})
}

// EscrowView handles GET /jobs/:id/escrow: the record plus its event
// history.
func (h *Handler) EscrowView(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid job id"})
	}
	rec, err := h.ledger.Record(c.Request().Context(), jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	evts, err := h.ledger.Events(c.Request().Context(), jobID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"escrow": rec, "events": evts})
}

// Webhook handles POST /webhooks/processor. Unauthenticated; trust comes
// from the body signature.
func (h *Handler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get(SignatureHeader)
	if err := h.orch.HandleWebhook(c.Request().Context(), body, sig); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
