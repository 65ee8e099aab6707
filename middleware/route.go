package middleware

import (
	"github.com/gin-gonic/gin"

	midsec "CardArena/middleware/security"
)

type RouteOpt struct {
	IsAuth bool
}

func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path,
			midsec.Middleware(midsec.DefaultOptions()),
			handler,
		)
	} else {
		r.POST(path, handler)
	}
}

func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path,
			midsec.Middleware(midsec.DefaultOptions()),
			handler,
		)
	} else {
		r.GET(path, handler)
	}
}
