package user

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"CardArena/global"
	"CardArena/logger"
	"CardArena/module/user/service"
	"CardArena/service/auth"
	"CardArena/tools/errs"
	jwtlib "CardArena/tools/security"
)

type Handler struct {
	users *service.Store
}

func NewHandler(users *service.Store) *Handler {
	return &Handler{users: users}
}

type loginReq struct {
	AuthCode string `json:"auth_code" binding:"required"`
}

// HandlerLogin exchanges an auth code for both credential formats the
// websocket verifier accepts: the legacy signed token and a service JWT
// for the HTTP endpoints.
func (h *Handler) HandlerLogin(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrArgs)
		return
	}

	u, err := h.users.ActiveByAuthCode(c.Request.Context(), req.AuthCode)
	if err != nil {
		logger.Infof("[login] auth code rejected: %v", err)
		c.JSON(http.StatusUnauthorized, errs.ErrNotAuthorized)
		return
	}

	secret := global.GetJwtSecret()
	jwt, exp, err := jwtlib.Generate(jwtlib.DefaultOptions(secret), u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errs.ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":        jwt,
		"expire_at":    exp.Unix(),
		"legacy_token": auth.SignToken(secret, u.ID, time.Now()),
		"user": gin.H{
			"id":           u.ID,
			"user_code":    u.UserCode,
			"username":     u.Username,
			"display_name": u.DisplayName,
		},
	})
}
