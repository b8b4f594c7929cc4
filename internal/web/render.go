package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/pkg/logging"
)

// render executes the named template with the viewer and login URL added to data.
func (r *Router) render(c *gin.Context, status int, name string, data gin.H) {
	user, _ := auth.CurrentUser(c)
	data["User"] = user
	data["LoginURL"] = r.loginURL
	c.HTML(status, name, data)
}

func (r *Router) notFound(c *gin.Context) {
	r.render(c, http.StatusNotFound, "core/404.html", gin.H{
		"Title": "Страница не найдена",
		"Path":  c.Request.URL.Path,
	})
}

// fail maps err to the 404 page or records it and renders the 500 page.
func (r *Router) fail(c *gin.Context, err error) {
	if errors.Is(err, db.ErrNotFound) {
		r.notFound(c)
		return
	}
	_ = c.Error(err)
	r.render(c, http.StatusInternalServerError, "core/500.html", gin.H{"Title": "Ошибка сервера"})
}

// postID parses the post_id path parameter.
func postID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, db.ErrNotFound
	}
	return id, nil
}

// publish sends e and logs delivery failures; the request never fails because of them.
func (r *Router) publish(c *gin.Context, e events.Event) {
	if err := r.events.Publish(c.Request.Context(), e); err != nil {
		logging.WithRequestID(r.logger, c.GetString(requestIDKey)).
			Warn("Failed to publish event", zap.String("type", e.Type), zap.Error(err))
	}
}
