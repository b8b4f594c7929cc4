package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yatube/yatube/internal/auth"
	"github.com/yatube/yatube/internal/events"
	"github.com/yatube/yatube/internal/models"
	"github.com/yatube/yatube/internal/paginator"
	"github.com/yatube/yatube/pkg/telemetry"
)

// followIndex lists posts of the authors the viewer follows.
func (r *Router) followIndex(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.follow_index")
	defer span.End()

	user, _ := auth.CurrentUser(c)
	page, err := paginator.PaginateSource[models.Post](ctx, r.posts.ListFollowed(user.ID), paginator.PageSize, c.Query("page"))
	if err != nil {
		r.fail(c, err)
		return
	}

	r.render(c, http.StatusOK, "posts/follow.html", gin.H{
		"Title": "Записи избранных авторов",
		"Page":  page,
	})
}

// profileFollow follows the author. Following yourself or an author already
// followed changes nothing.
func (r *Router) profileFollow(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.profile_follow")
	defer span.End()

	author, err := r.users.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		r.fail(c, err)
		return
	}

	user, _ := auth.CurrentUser(c)
	if user.ID != author.ID {
		created, err := r.follows.Follow(ctx, user.ID, author.ID)
		if err != nil {
			r.fail(c, err)
			return
		}
		if created {
			r.publish(c, events.Event{Type: events.FollowCreated, ActorID: user.ID, AuthorID: author.ID})
		}
	}

	c.Redirect(http.StatusFound, profileURL(author.Username))
}

func (r *Router) profileUnfollow(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "web.profile_unfollow")
	defer span.End()

	author, err := r.users.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		r.fail(c, err)
		return
	}

	user, _ := auth.CurrentUser(c)
	removed, err := r.follows.Unfollow(ctx, user.ID, author.ID)
	if err != nil {
		r.fail(c, err)
		return
	}
	if removed {
		r.publish(c, events.Event{Type: events.FollowDeleted, ActorID: user.ID, AuthorID: author.ID})
	}

	c.Redirect(http.StatusFound, profileURL(author.Username))
}
