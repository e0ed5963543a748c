package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kochabonline/hartshorn/log"
)

type RecoveryConfig struct {
	Stack bool
}

func GinRecovery(l *log.Logger) gin.HandlerFunc {
	return GinRecoveryWithConfig(l, RecoveryConfig{
		Stack: true,
	})
}

func GinRecoveryWithConfig(l *log.Logger, config RecoveryConfig) gin.HandlerFunc {
	if l == nil {
		l = log.Global().Component("http")
	}
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				event := l.Error().
					Str("request", string(httpRequest)).
					Any("errors", err)

				// A broken connection does not warrant a stack trace and
				// cannot receive a status.
				if isBrokenPipe(err) {
					event.Msg("[http] | connection lost")
					_ = c.Error(fmt.Errorf("%v", err))
					c.Abort()
					return
				}

				if config.Stack {
					event = event.Str("stack", string(debug.Stack()))
				}
				event.Msg("[http] | panic recovered")
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

func isBrokenPipe(err any) bool {
	if ne, ok := err.(*net.OpError); ok {
		if se, ok := ne.Err.(*os.SyscallError); ok {
			errStr := strings.ToLower(se.Error())
			return strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "connection reset by peer")
		}
	}
	return false
}
