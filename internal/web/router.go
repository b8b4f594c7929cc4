// Package web serves the yatube pages.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/cache"
	"github.com/yatube/yatube/internal/db"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/internal/htmlsanitize"
	"github.com/yatube/yatube/internal/storage"
	"github.com/yatube/yatube/pkg/logging"
	"github.com/yatube/yatube/pkg/telemetry"
)

//go:embed templates
var templatesFS embed.FS

// Options are the collaborators of the router.
type Options struct {
	DB        *db.DB
	PageCache *cache.PageCache
	Identity  *auth.Identity
	Images    storage.ImageStore
	Events    events.Publisher
	LoginURL  string
	MediaRoot string
	MediaURL  string
}

// Router sets up the page routes
type Router struct {
	db        *db.DB
	users     *db.UserRepository
	groups    *db.GroupRepository
	posts     *db.PostRepository
	comments  *db.CommentRepository
	follows   *db.FollowRepository
	pageCache *cache.PageCache
	identity  *auth.Identity
	images    storage.ImageStore
	events    events.Publisher
	loginURL  string
	mediaRoot string
	mediaURL  string
	templates *template.Template
	logger    *zap.Logger
}

// NewRouter creates a new router and parses the page templates.
func NewRouter(opts Options) (*Router, error) {
	repo := db.NewRepository(opts.DB.DB)

	r := &Router{
		db:        opts.DB,
		users:     db.NewUserRepository(repo),
		groups:    db.NewGroupRepository(repo),
		posts:     db.NewPostRepository(repo),
		comments:  db.NewCommentRepository(repo),
		follows:   db.NewFollowRepository(repo),
		pageCache: opts.PageCache,
		identity:  opts.Identity,
		images:    opts.Images,
		events:    opts.Events,
		loginURL:  opts.LoginURL,
		mediaRoot: opts.MediaRoot,
		mediaURL:  opts.MediaURL,
		logger:    logging.WithComponent("web"),
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	if r.loginURL == "" {
		r.loginURL = "/auth/login/"
	}
	if r.mediaURL == "" {
		r.mediaURL = "/media/"
	}
	if r.pageCache != nil {
		r.pageCache.VaryBy(viewer)
	}

	tmpl, err := template.New("yatube").
		Funcs(r.templateFuncs()).
		ParseFS(templatesFS, "templates/*/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.templates = tmpl

	return r, nil
}

func (r *Router) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"linebreaks": htmlsanitize.RenderText,
		"media": func(name string) string {
			return strings.TrimSuffix(r.mediaURL, "/") + "/" + name
		},
		"date": func(t time.Time) string {
			return t.Format("2 January 2006")
		},
	}
}

// viewer keys cached pages by the authenticated username; anonymous
// visitors share one entry per URI.
func viewer(c *gin.Context) string {
	if u, ok := auth.CurrentUser(c); ok {
		return u.Username
	}
	return ""
}

// SetupRoutes installs middleware and routes on engine.
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.SetHTMLTemplate(r.templates)

	engine.Use(
		requestLogger(r.logger),
		gin.CustomRecovery(r.recoverPanic),
		r.errorPage(),
		r.identity.Authenticate(),
	)

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	if r.mediaRoot != "" {
		engine.Static(strings.TrimSuffix(r.mediaURL, "/"), r.mediaRoot)
	}

	index := []gin.HandlerFunc{r.index}
	if r.pageCache != nil {
		index = append([]gin.HandlerFunc{r.pageCache.Middleware()}, index...)
	}
	engine.GET("/", index...)
	engine.GET("/group/:slug/", r.groupPosts)
	engine.GET("/profile/:username/", r.profile)
	engine.GET("/posts/:post_id/", r.postDetail)

	login := auth.RequireLogin(r.loginURL)
	engine.POST("/posts/:post_id/comment/", login, r.addComment)
	engine.GET("/create/", login, r.postCreate)
	engine.POST("/create/", login, r.postCreate)
	engine.GET("/posts/:post_id/edit/", login, r.postEdit)
	engine.POST("/posts/:post_id/edit/", login, r.postEdit)
	engine.GET("/follow/", login, r.followIndex)
	engine.GET("/profile/:username/follow/", login, r.profileFollow)
	engine.GET("/profile/:username/unfollow/", login, r.profileUnfollow)

	engine.NoRoute(r.notFound)
}

// healthHandler reports service and database status.
func (r *Router) healthHandler(c *gin.Context) {
	if err := r.db.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "ERROR",
			"service":  "yatube",
			"database": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "OK",
		"service":  "yatube",
		"database": "OK",
	})
}
