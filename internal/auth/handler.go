package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/middleware"
	"github.com/gigvault/gigvault/internal/store"
)

type Handler struct {
	svc   *Service
	store store.Store
}

func NewHandler(s *Service, st store.Store) *Handler {
	return &Handler{svc: s, store: st}
}

type SignupRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	PayoutAccount string `json:"payout_account"`
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	u, err := h.svc.Signup(c.Request().Context(), req.Name, req.Email, req.Password, req.Role, req.PayoutAccount)
	if err != nil {
		return apperr.Respond(c, err)
	}
	token, err := h.svc.IssueToken(u)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": u, "token": token})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(c echo.Context) error {
	req := new(LoginRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	token, u, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials read as 401 rather than the generic 403.
		if apperr.Is(err, apperr.KindAuthorization) && !errors.Is(err, ErrSuspended) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token, "user": u})
}

// Me handles GET /auth/me.
func (h *Handler) Me(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.store.GetUser(c.Request().Context(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
