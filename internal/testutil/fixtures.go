package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yatube/yatube/internal/models"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db    *gorm.DB
	t     *testing.T
	clock time.Time
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	t.Helper()
	return &Fixtures{
		db:    db,
		t:     t,
		clock: time.Date(2023, 3, 16, 22, 0, 0, 0, time.UTC),
	}
}

// next returns strictly increasing creation times so ordering is deterministic.
func (f *Fixtures) next() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// CreateUser creates a user with the given username.
func (f *Fixtures) CreateUser(username string) *models.User {
	f.t.Helper()
	u := &models.User{Username: username, CreatedAt: f.next()}
	if err := f.db.WithContext(context.Background()).Create(u).Error; err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateGroup creates a group with the given title and slug.
func (f *Fixtures) CreateGroup(title, slug string) *models.Group {
	f.t.Helper()
	g := &models.Group{Title: title, Slug: slug, Description: "Тестовое описание"}
	if err := f.db.WithContext(context.Background()).Create(g).Error; err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreatePost creates a post by author, optionally in group.
func (f *Fixtures) CreatePost(author *models.User, group *models.Group, text string) *models.Post {
	f.t.Helper()
	p := &models.Post{Text: text, AuthorID: author.ID, CreatedAt: f.next()}
	if group != nil {
		p.GroupID = &group.ID
	}
	if err := f.db.WithContext(context.Background()).Omit(clause.Associations).Create(p).Error; err != nil {
		f.t.Fatalf("failed to create test post: %v", err)
	}
	return p
}

// CreatePosts creates n posts by author in group.
func (f *Fixtures) CreatePosts(author *models.User, group *models.Group, n int) []*models.Post {
	f.t.Helper()
	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		posts = append(posts, f.CreatePost(author, group, "Тестовый пост"))
	}
	return posts
}

// CreateComment creates a comment on post by author.
func (f *Fixtures) CreateComment(post *models.Post, author *models.User, text string) *models.Comment {
	f.t.Helper()
	c := &models.Comment{PostID: post.ID, AuthorID: author.ID, Text: text, CreatedAt: f.next()}
	if err := f.db.WithContext(context.Background()).Omit(clause.Associations).Create(c).Error; err != nil {
		f.t.Fatalf("failed to create test comment: %v", err)
	}
	return c
}

// Follow creates the edge user -> author.
func (f *Fixtures) Follow(user, author *models.User) {
	f.t.Helper()
	e := &models.Follow{UserID: user.ID, AuthorID: author.ID, CreatedAt: f.next()}
	if err := f.db.WithContext(context.Background()).Omit(clause.Associations).Create(e).Error; err != nil {
		f.t.Fatalf("failed to create test follow: %v", err)
	}
}

// CountPosts returns the number of posts in the database.
func (f *Fixtures) CountPosts() int64 {
	f.t.Helper()
	var n int64
	if err := f.db.Model(&models.Post{}).Count(&n).Error; err != nil {
		f.t.Fatalf("failed to count posts: %v", err)
	}
	return n
}

// ReloadPost reads a post back from the database.
func (f *Fixtures) ReloadPost(id int64) *models.Post {
	f.t.Helper()
	var p models.Post
	if err := f.db.First(&p, id).Error; err != nil {
		f.t.Fatalf("failed to reload post %d: %v", id, err)
	}
	return &p
}
