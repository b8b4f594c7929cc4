package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yatube/yatube/pkg/logging"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestLogger tags each request with an id and logs it once it completes.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		l := logging.WithRequestID(logger, id)
		if len(c.Errors) > 0 {
			l.Error("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		l.Info("Request", fields...)
	}
}

// errorPage renders the 500 page for requests that recorded an error but
// wrote no response.
func (r *Router) errorPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			r.render(c, http.StatusInternalServerError, "core/500.html", gin.H{"Title": "Ошибка сервера"})
		}
	}
}

func (r *Router) recoverPanic(c *gin.Context, recovered any) {
	logging.WithRequestID(r.logger, c.GetString(requestIDKey)).
		Error("Recovered from panic", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
	r.render(c, http.StatusInternalServerError, "core/500.html", gin.H{"Title": "Ошибка сервера"})
	c.Abort()
}
