package web

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/internal/forms"
	"github.com/yatube/yatube/internal/models"
	"github.com/yatube/yatube/internal/paginator"
	"github.com/yatube/yatube/pkg/telemetry"
)

// index lists every post. The page cache sits in front of it.
func (r *Router) index(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.index")
	defer span.End()

	page, err := paginator.PaginateSource[models.Post](ctx, r.posts.ListAll(), paginator.PageSize, c.Query("page"))
	if err != nil {
		r.fail(c, err)
		return
	}

	r.render(c, http.StatusOK, "posts/index.html", gin.H{
		"Title": "Последние обновления на сайте",
		"Page":  page,
	})
}

func (r *Router) groupPosts(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.group_posts")
	defer span.End()

	slug := c.Param("slug")
	span.SetAttributes(attribute.String("group.slug", slug))

	group, list, err := r.posts.ListByGroup(ctx, slug)
	if err != nil {
		r.fail(c, err)
		return
	}

	page, err := paginator.PaginateSource[models.Post](ctx, list, paginator.PageSize, c.Query("page"))
	if err != nil {
		r.fail(c, err)
		return
	}

	r.render(c, http.StatusOK, "posts/group_list.html", gin.H{
		"Title": "Записи сообщества " + group.Title,
		"Group": group,
		"Page":  page,
	})
}

// profile lists an author's posts and whether the viewer follows them.
func (r *Router) profile(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.profile")
	defer span.End()

	author, list, err := r.posts.ListByAuthor(ctx, c.Param("username"))
	if err != nil {
		r.fail(c, err)
		return
	}

	page, err := paginator.PaginateSource[models.Post](ctx, list, paginator.PageSize, c.Query("page"))
	if err != nil {
		r.fail(c, err)
		return
	}

	following := false
	if user, ok := auth.CurrentUser(c); ok {
		following, err = r.follows.Exists(ctx, user.ID, author.ID)
		if err != nil {
			r.fail(c, err)
			return
		}
	}

	r.render(c, http.StatusOK, "posts/profile.html", gin.H{
		"Title":     "Профайл пользователя " + author.Username,
		"Author":    author,
		"Page":      page,
		"Following": following,
	})
}

func (r *Router) postDetail(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.post_detail")
	defer span.End()

	id, err := postID(c)
	if err != nil {
		r.fail(c, err)
		return
	}
	span.SetAttributes(attribute.Int64("post.id", id))

	detail, err := r.posts.GetDetail(ctx, id)
	if err != nil {
		r.fail(c, err)
		return
	}

	user, _ := auth.CurrentUser(c)
	r.render(c, http.StatusOK, "posts/post_detail.html", gin.H{
		"Title":           "Пост " + detail.Post.Excerpt(),
		"Post":            detail.Post,
		"Comments":        detail.Comments,
		"AuthorPostCount": detail.AuthorPostCount,
		"IsAuthor":        detail.Post.IsAuthoredBy(user),
		"Form":            &forms.CommentForm{Errors: forms.Errors{}},
	})
}

// addComment saves a valid comment. Invalid submissions are dropped and the
// viewer is sent back to the post either way.
func (r *Router) addComment(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.add_comment")
	defer span.End()

	id, err := postID(c)
	if err != nil {
		r.fail(c, err)
		return
	}
	post, err := r.posts.GetByID(ctx, id)
	if err != nil {
		r.fail(c, err)
		return
	}

	user, _ := auth.CurrentUser(c)
	form := forms.CommentFormFromRequest(c.Request)
	if form.Validate() {
		comment := &models.Comment{PostID: post.ID, AuthorID: user.ID, Text: form.Text}
		if err := r.comments.Create(ctx, comment); err != nil {
			r.fail(c, err)
			return
		}
		r.publish(c, events.Event{
			Type:      events.CommentCreated,
			ActorID:   user.ID,
			PostID:    post.ID,
			CommentID: comment.ID,
			AuthorID:  post.AuthorID,
		})
	}

	c.Redirect(http.StatusFound, detailURL(post.ID))
}

func (r *Router) postCreate(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.post_create")
	defer span.End()

	user, _ := auth.CurrentUser(c)

	if c.Request.Method != http.MethodPost {
		r.renderPostForm(c, &forms.PostForm{Errors: forms.Errors{}}, nil)
		return
	}

	form := forms.PostFormFromRequest(c.Request)
	ok, err := form.Validate(ctx, r.groups, r.images)
	if err != nil {
		r.fail(c, err)
		return
	}
	if !ok {
		r.renderPostForm(c, form, nil)
		return
	}

	post := &models.Post{AuthorID: user.ID}
	form.Apply(post)
	if form.Image != nil && r.images != nil {
		if post.Image, err = r.images.Save(ctx, form.Image); err != nil {
			r.fail(c, err)
			return
		}
	}
	if err := r.posts.Create(ctx, post); err != nil {
		r.fail(c, err)
		return
	}

	r.publish(c, events.Event{Type: events.PostCreated, ActorID: user.ID, PostID: post.ID, AuthorID: user.ID})
	c.Redirect(http.StatusFound, profileURL(user.Username))
}

// postEdit lets the author change a post. Anyone else is sent to the post
// page before the submission is read.
func (r *Router) postEdit(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.post_edit")
	defer span.End()

	id, err := postID(c)
	if err != nil {
		r.fail(c, err)
		return
	}
	post, err := r.posts.GetByID(ctx, id)
	if err != nil {
		r.fail(c, err)
		return
	}

	user, _ := auth.CurrentUser(c)
	if !post.IsAuthoredBy(user) {
		c.Redirect(http.StatusFound, detailURL(post.ID))
		return
	}

	if c.Request.Method != http.MethodPost {
		r.renderPostForm(c, forms.PostFormFromPost(post), post)
		return
	}

	form := forms.PostFormFromRequest(c.Request)
	ok, err := form.Validate(ctx, r.groups, r.images)
	if err != nil {
		r.fail(c, err)
		return
	}
	if !ok {
		r.renderPostForm(c, form, post)
		return
	}

	form.Apply(post)
	if form.Image != nil && r.images != nil {
		if post.Image, err = r.images.Save(ctx, form.Image); err != nil {
			r.fail(c, err)
			return
		}
	}
	if err := r.posts.Update(ctx, post); err != nil {
		r.fail(c, err)
		return
	}

	r.publish(c, events.Event{Type: events.PostUpdated, ActorID: user.ID, PostID: post.ID, AuthorID: post.AuthorID})
	c.Redirect(http.StatusFound, detailURL(post.ID))
}

// renderPostForm shows the create form, or the edit form when post is set.
func (r *Router) renderPostForm(c *gin.Context, form *forms.PostForm, post *models.Post) {
	groups, err := r.groups.List(c.Request.Context())
	if err != nil {
		r.fail(c, err)
		return
	}

	data := gin.H{
		"Title":  "Новый пост",
		"Form":   form,
		"Groups": groups,
		"IsEdit": post != nil,
	}
	if post != nil {
		data["Title"] = "Редактировать пост"
		data["PostID"] = post.ID
	}
	r.render(c, http.StatusOK, "posts/create_post.html", data)
}

func detailURL(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10) + "/"
}

func profileURL(username string) string {
	return "/profile/" + username + "/"
}
