package models

import (
	"time"
)

// Comment is a reader's reply to a post. Comments cannot be edited.
type Comment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	PostID    int64     `gorm:"not null;index:yatube_comments_ix1;column:post_id"`
	AuthorID  int64     `gorm:"not null;column:author_id"`
	Text      string    `gorm:"type:text;not null;column:text"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Post   *Post `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	Author *User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "yatube_comments"
}
