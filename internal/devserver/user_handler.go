package devserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/skillswap/skillswap-client/internal/core/domain"
)

type userHandler struct {
	store *store
}

// Me handles GET /users/me.
func (h *userHandler) Me(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}
	u, ok := h.store.userByID(userID)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	return c.JSON(http.StatusOK, domain.Identity{
		ID:        u.ID,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	})
}
