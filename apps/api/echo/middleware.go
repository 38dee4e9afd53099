package echoapi

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(claims, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// rateLimitMiddleware allows perMinute requests per client IP. A non positive perMinute disables it.
func rateLimitMiddleware(perMinute int) echo.MiddlewareFunc {
	if perMinute <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	every := rate.Every(time.Minute / time.Duration(perMinute))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ip := ctx.RealIP()
			mu.Lock()
			lim, ok := limiters[ip]
			if !ok {
				lim = rate.NewLimiter(every, perMinute)
				limiters[ip] = lim
			}
			mu.Unlock()

			if !lim.Allow() {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
