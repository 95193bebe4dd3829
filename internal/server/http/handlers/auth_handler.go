package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/memberpay/internal/domain/model"
	"github.com/polkiloo/memberpay/internal/server/http/dto"
)

// AuthHandler processes mini-program login and profile reads.
type AuthHandler struct {
	facade AuthFacade
}

// NewAuthHandler creates AuthHandler instance.
func NewAuthHandler(facade AuthFacade) *AuthHandler {
	return &AuthHandler{facade: facade}
}

// Login handles POST /api/user/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ExternalID) == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	user, token, err := h.facade.Login(c.Request.Context(), req.ExternalID)
	if err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:          token,
		UserID:         user.ID,
		MemberExpireAt: user.MemberExpireAt,
		MemberActive:   user.MemberActiveAt(time.Now()),
	})
}

// Me handles GET /api/user/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.facade.UserByID(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		c.Status(statusFromError(err))
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		UserID:         user.ID,
		ExternalID:     user.ExternalID,
		MemberExpireAt: user.MemberExpireAt,
		MemberActive:   user.MemberActiveAt(time.Now()),
	}
}
