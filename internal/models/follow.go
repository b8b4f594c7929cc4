package models

import (
	"time"
)

// Follow is a directed edge: UserID wants AuthorID's posts in their feed.
// The pair is unique; self edges are rejected by the caller, not here.
type Follow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `gorm:"not null;uniqueIndex:yatube_follows_ux1;column:user_id"`
	AuthorID  int64     `gorm:"not null;uniqueIndex:yatube_follows_ux1;index:yatube_follows_ix1;column:author_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	User   *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Author *User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "yatube_follows"
}

// All returns every model in dependency order, for schema creation.
func All() []interface{} {
	return []interface{}{&User{}, &Group{}, &Post{}, &Comment{}, &Follow{}}
}
