package devserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const refreshCookie = "refresh_token"

type authHandler struct {
	store     *store
	jwtSecret string
	debug     bool
	now       func() time.Time
	log       zerolog.Logger
}

type phoneRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
}

type codeRequestResponse struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expires_in"`
	DebugCode string `json:"debug_code,omitempty"`
}

type verifyRequest struct {
	Phone string `json:"phone" validate:"required,e164"`
	Code  string `json:"code" validate:"required,numeric,len=6"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	IsNewUser   bool   `json:"is_new_user,omitempty"`
}

// RequestCode handles POST /auth/request_code.
func (h *authHandler) RequestCode(c echo.Context) error {
	var req phoneRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	code, err := h.store.issueCode(req.Phone, h.now())
	if err != nil {
		return err
	}

	resp := codeRequestResponse{
		Message:   "verification code sent",
		ExpiresIn: int(codeTTL.Seconds()),
	}
	if h.debug {
		resp.DebugCode = code
	}
	h.log.Debug().Str("phone", req.Phone).Msg("verification code issued")
	return c.JSON(http.StatusOK, resp)
}

// VerifyCode handles POST /auth/verify_code. On success it returns an access
// token and sets the durable refresh credential as an HTTP-only cookie.
func (h *authHandler) VerifyCode(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	u, isNew, err := h.store.verifyCode(req.Phone, req.Code, h.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	token, expiresIn, err := issueAccessToken(h.jwtSecret, u.ID, u.Role, h.now())
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, h.store.createSession(u.ID))
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
		IsNewUser:   isNew,
	})
}

// Refresh handles POST /auth/refresh using the refresh cookie, rotating it.
func (h *authHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh credential")
	}

	next, userID, ok := h.store.rotateSession(cookie.Value)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired refresh credential")
	}
	u, ok := h.store.userByID(userID)
	if !ok || !u.IsActive {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found or inactive")
	}

	token, expiresIn, err := issueAccessToken(h.jwtSecret, u.ID, u.Role, h.now())
	if err != nil {
		return err
	}

	h.setRefreshCookie(c, next)
	return c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	})
}

// Logout handles POST /auth/logout, revoking the refresh session.
func (h *authHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(refreshCookie); err == nil && cookie.Value != "" {
		h.store.dropSession(cookie.Value)
	}
	c.SetCookie(&http.Cookie{Name: refreshCookie, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})
	return c.NoContent(http.StatusNoContent)
}

func (h *authHandler) setRefreshCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
	})
}
