package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/costwatch/costwatch/internal/ratelimit"
	"github.com/costwatch/costwatch/pkg/response"
)

// TenantRateLimit enforces the per-tenant sliding-window limit on
// ingestion routes. Every response carries the X-RateLimit headers;
// denials add Retry-After and never reach the DLQ.
func TenantRateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := GetTenantID(c)
		if tenant == "" {
			// Unauthenticated requests were already rejected upstream.
			c.Next()
			return
		}

		decision := limiter.Check(c.Request.Context(), tenant)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.Reset.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			response.Fail(c, http.StatusTooManyRequests, response.CodeRateLimited,
				fmt.Sprintf("rate limit exceeded, retry after %ds", retryAfter), nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
