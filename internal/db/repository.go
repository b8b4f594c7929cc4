package db

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yatube/yatube/internal/models"
)

// ErrNotFound is returned when a looked-up group, user or post does not exist.
var ErrNotFound = errors.New("record not found")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// Ensure returns the user with the given username, creating the row if the
// identity provider has not been seen before. Concurrent first requests for the
// same username resolve to the same row.
func (r *UserRepository) Ensure(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("ensure user: empty username")
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(&models.User{Username: username}).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", username, err)
	}
	return r.GetByUsername(ctx, username)
}

// GroupRepository provides group-related database operations
type GroupRepository struct {
	*Repository
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(repo *Repository) *GroupRepository {
	return &GroupRepository{Repository: repo}
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).First(&group, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

// GetBySlug retrieves a group by its slug
func (r *GroupRepository) GetBySlug(ctx context.Context, slug string) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&group).Error; err != nil {
		return nil, notFound(err)
	}
	return &group, nil
}

// List returns all groups ordered by title, for the post form's group choices.
func (r *GroupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := r.db.WithContext(ctx).Order("title").Order("id").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// Delete removes a group; its posts keep existing without a group.
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Group{}, id).Error
}

// PostList describes an ordered, filtered set of posts. It holds no rows:
// Count and Fetch each run a query against the current state.
type PostList struct {
	db    *gorm.DB
	scope func(*gorm.DB) *gorm.DB
}

func (l PostList) query(ctx context.Context) *gorm.DB {
	q := l.db.WithContext(ctx).Model(&models.Post{})
	if l.scope != nil {
		q = q.Scopes(l.scope)
	}
	return q
}

// Count returns the number of posts in the list.
func (l PostList) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.query(ctx).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// Fetch returns up to limit posts starting at offset, newest first, with
// author and group resolved.
func (l PostList) Fetch(ctx context.Context, offset, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := l.query(ctx).
		Preload("Author").
		Preload("Group").
		Order("yatube_posts.created_at DESC").
		Order("yatube_posts.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	return posts, nil
}

// All returns every post in the list.
func (l PostList) All(ctx context.Context) ([]models.Post, error) {
	n, err := l.Count(ctx)
	if err != nil {
		return nil, err
	}
	return l.Fetch(ctx, 0, int(n))
}

// PostDetail is a post with its comments and the author's total post count.
type PostDetail struct {
	Post            *models.Post
	Comments        []models.Comment
	AuthorPostCount int64
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// ListAll lists every post.
func (r *PostRepository) ListAll() PostList {
	return PostList{db: r.db}
}

// ListByGroup lists the posts of the group with the given slug.
func (r *PostRepository) ListByGroup(ctx context.Context, slug string) (*models.Group, PostList, error) {
	group, err := NewGroupRepository(r.Repository).GetBySlug(ctx, slug)
	if err != nil {
		return nil, PostList{}, err
	}
	return group, PostList{db: r.db, scope: func(q *gorm.DB) *gorm.DB {
		return q.Where("yatube_posts.group_id = ?", group.ID)
	}}, nil
}

// ListByAuthor lists the posts written by the user with the given username.
func (r *PostRepository) ListByAuthor(ctx context.Context, username string) (*models.User, PostList, error) {
	author, err := NewUserRepository(r.Repository).GetByUsername(ctx, username)
	if err != nil {
		return nil, PostList{}, err
	}
	return author, r.listByAuthorID(author.ID), nil
}

func (r *PostRepository) listByAuthorID(authorID int64) PostList {
	return PostList{db: r.db, scope: func(q *gorm.DB) *gorm.DB {
		return q.Where("yatube_posts.author_id = ?", authorID)
	}}
}

// ListFollowed lists the posts of every author userID follows.
func (r *PostRepository) ListFollowed(userID int64) PostList {
	followed := r.db.Model(&models.Follow{}).Select("author_id").Where("user_id = ?", userID)
	return PostList{db: r.db, scope: func(q *gorm.DB) *gorm.DB {
		return q.Where("yatube_posts.author_id IN (?)", followed)
	}}
}

// GetByID retrieves a post by ID with author and group resolved
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Preload("Group").First(&post, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

// GetDetail retrieves a post, its comments newest first and the author's post count.
func (r *PostRepository) GetDetail(ctx context.Context, id int64) (*PostDetail, error) {
	post, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	comments, err := NewCommentRepository(r.Repository).ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	count, err := r.listByAuthorID(post.AuthorID).Count(ctx)
	if err != nil {
		return nil, err
	}

	return &PostDetail{Post: post, Comments: comments, AuthorPostCount: count}, nil
}

// Create creates a new post. Author and Group are referenced by id only.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// Update saves the editable fields of a post: text, group and image.
// created_at and the author never change.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{ID: post.ID}).
		Updates(map[string]interface{}{
			"text":     post.Text,
			"group_id": post.GroupID,
			"image":    post.Image,
		}).Error
}

// Delete removes a post and, through the foreign key, its comments.
func (r *PostRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&models.Post{}, id).Error
}

// CommentRepository provides comment-related database operations
type CommentRepository struct {
	*Repository
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(repo *Repository) *CommentRepository {
	return &CommentRepository{Repository: repo}
}

// ListByPost returns the comments of a post, newest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// Create creates a new comment
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error
}

// FollowRepository provides follow-edge database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Follow inserts the edge userID -> authorID unless it already exists.
// It reports whether a row was created.
func (r *FollowRepository) Follow(ctx context.Context, userID, authorID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "author_id"}},
			DoNothing: true,
		}).
		Create(&models.Follow{UserID: userID, AuthorID: authorID})
	if res.Error != nil {
		return false, fmt.Errorf("follow: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Unfollow deletes the edge userID -> authorID if present and reports whether
// a row was removed.
func (r *FollowRepository) Unfollow(ctx context.Context, userID, authorID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, fmt.Errorf("unfollow: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Exists reports whether userID follows authorID.
func (r *FollowRepository) Exists(ctx context.Context, userID, authorID int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the total number of follow edges.
func (r *FollowRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
