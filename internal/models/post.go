package models

import (
	"time"
)

// ExcerptLength is the number of characters of a post's text used as its title.
const ExcerptLength = 15

// Post is a published entry. GroupID is nulled when the group is deleted;
// the post itself and its comments go away with the author.
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Text      string    `gorm:"type:text;not null;column:text"`
	AuthorID  int64     `gorm:"not null;index:yatube_posts_ix1;column:author_id"`
	GroupID   *int64    `gorm:"index:yatube_posts_ix2;column:group_id"`
	Image     string    `gorm:"type:varchar(255);not null;default:'';column:image"`
	CreatedAt time.Time `gorm:"not null;index:yatube_posts_ix3;column:created_at"`

	// Relationships
	Author   *User     `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
	Group    *Group    `gorm:"foreignKey:GroupID;references:ID;constraint:OnDelete:SET NULL"`
	Comments []Comment `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "yatube_posts"
}

// Excerpt returns the first ExcerptLength characters of the text.
func (p Post) Excerpt() string {
	r := []rune(p.Text)
	if len(r) <= ExcerptLength {
		return p.Text
	}
	return string(r[:ExcerptLength])
}

func (p Post) String() string {
	return p.Excerpt()
}

// IsAuthoredBy reports whether u wrote the post. A nil user never is.
func (p Post) IsAuthoredBy(u *User) bool {
	return u != nil && u.ID == p.AuthorID
}
