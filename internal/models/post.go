package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Post status values.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// WordsPerMinute is the reading speed used for ReadTime.
const WordsPerMinute = 200

// Post represents a blog article.
type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Title    string    `gorm:"size:100;not null" json:"title"`
	Slug     string    `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Content  string    `gorm:"type:text;not null" json:"content"`
	Excerpt  string    `gorm:"size:200;not null" json:"excerpt"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Author   User      `gorm:"foreignKey:AuthorID" json:"author"`
	Image    string    `gorm:"not null;default:''" json:"image"`
	Category string    `gorm:"not null;index" json:"category"`
	TagRows  []PostTag `gorm:"foreignKey:PostID" json:"-"`
	// Tags is the ordered tag list exposed to clients; TagRows is its storage form.
	Tags      []string  `gorm:"-" json:"tags"`
	Likes     int       `gorm:"not null;default:0" json:"likes"`
	Status    string    `gorm:"size:16;not null;default:published;index" json:"status"`
	ReadTime  string    `gorm:"size:32" json:"read_time"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostTag stores one tag of a post, keeping its position in the list.
type PostTag struct {
	PostID   uint   `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Position int    `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Name     string `gorm:"size:64;not null;index" json:"name"`
}

// ReadTime renders the estimated reading time of content as "<n> min read".
func ReadTime(content string) string {
	words := len(strings.Fields(content))
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// BeforeSave keeps ReadTime in step with Content.
func (p *Post) BeforeSave(tx *gorm.DB) error {
	if p.Content != "" {
		p.ReadTime = ReadTime(p.Content)
	}
	return nil
}

// AfterFind flattens TagRows into Tags.
func (p *Post) AfterFind(tx *gorm.DB) error {
	if len(p.TagRows) > 0 {
		p.Tags = TagNames(p.TagRows)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return nil
}

// TagNames returns the tag names of rows in position order.
func TagNames(rows []PostTag) []string {
	names := make([]string, len(rows))
	for i := range rows {
		names[i] = rows[i].Name
	}
	return names
}

// TagRowsFor builds storage rows for tags of postID.
func TagRowsFor(postID uint, tags []string) []PostTag {
	rows := make([]PostTag, 0, len(tags))
	for i, t := range tags {
		rows = append(rows, PostTag{PostID: postID, Position: i, Name: t})
	}
	return rows
}

// IsPublished reports whether the post is visible to everyone.
func (p *Post) IsPublished() bool {
	return p.Status == StatusPublished
}
