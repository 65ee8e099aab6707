package security

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"CardArena/global"
	"CardArena/tools/errs"
	jwtlib "CardArena/tools/security"
)

// Context key later handlers read the caller's id from.
const CtxUserIDKey = "authUserID"

type Options struct {
	HeaderToken               string // defaults to "authorization"
	EnableAuthorizationBearer bool   // defaults to true
	Secret                    []byte
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "authorization",
		EnableAuthorizationBearer: true,
		Secret:                    global.GetJwtSecret(),
	}
}

// Middleware guards internal HTTP routes with a service JWT.
func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(opts.HeaderToken))

		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
				if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
					token = strings.TrimSpace(authz[len("bearer "):])
				}
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrNotAuthorized)
			return
		}

		userID, err := jwtlib.Verify(jwtlib.DefaultOptions(opts.Secret), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			return
		}

		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}
