package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/donnyesq/gamble/types"
	"github.com/gin-gonic/gin"
)

// Timeout bounds the request context of short JSON routes. If the handler
// returns after the deadline without writing, a 408 is sent. Routes whose work
// must outlive the request (bets, wallet prompts) do not use it.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		// Deadline is carried by the request context
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		// Handler gave up on the deadline without answering
		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusRequestTimeout, types.ErrorResponse{
				StatusCode: http.StatusRequestTimeout,
				IsSuccess:  false,
				Error: types.ErrorDetail{
					Timestamp:    time.Now().Format(time.RFC3339),
					Path:         c.Request.URL.Path,
					ErrorMessage: "Request timeout",
				},
			})
		}
	}
}
