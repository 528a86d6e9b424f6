package repository

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"chronicle/internal/models"

	"gorm.io/gorm"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
	// MaxPage keeps (Page-1)*Limit within a 32-bit OFFSET.
	MaxPage = math.MaxInt32/MaxLimit + 1
)

// sortColumns whitelists the sortable fields by their public names.
var sortColumns = map[string]string{
	"createdAt": "posts.created_at",
	"updatedAt": "posts.updated_at",
	"likes":     "posts.likes",
	"title":     "posts.title",
}

// PostQuery describes one page of the public post listing.
type PostQuery struct {
	Category string
	Tag      string
	Search   string
	// Sort is a comma separated field list; a leading "-" sorts descending.
	Sort  string
	Page  int
	Limit int
	// Status filters by status; only honoured when IncludeDrafts is set.
	Status string
	// IncludeDrafts is set for admins. Everyone else only sees published posts.
	IncludeDrafts bool
}

// PostPage is the listing envelope returned to clients.
type PostPage struct {
	Posts       []*models.Post `json:"posts"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	TotalPosts  int64          `json:"totalPosts"`
}

// Normalize applies defaults and bounds to paging and sort.
func (q PostQuery) Normalize() PostQuery {
	q.Category = strings.TrimSpace(q.Category)
	q.Tag = strings.TrimSpace(q.Tag)
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if _, ok := parseSort(q.Sort); !ok {
		q.Sort = DefaultSort
	}
	if !q.IncludeDrafts {
		q.Status = models.StatusPublished
	} else if q.Status != models.StatusDraft && q.Status != models.StatusPublished {
		q.Status = ""
	}
	return q
}

// Offset is the number of rows skipped for the current page.
func (q PostQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// CacheKey renders the normalised query as a stable string.
func (q PostQuery) CacheKey() string {
	v := url.Values{}
	v.Set("category", q.Category)
	v.Set("tag", q.Tag)
	v.Set("search", q.Search)
	v.Set("sort", q.Sort)
	v.Set("status", q.Status)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	return v.Encode()
}

// TotalPages is ceil(total / limit).
func TotalPages(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// Filter adds the WHERE clauses of q to db. q must be normalised.
func (q PostQuery) Filter(db *gorm.DB) *gorm.DB {
	if q.Status != "" {
		db = db.Where("posts.status = ?", q.Status)
	}
	if q.Category != "" {
		db = db.Where("posts.category = ?", q.Category)
	}
	if q.Tag != "" {
		db = db.Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.name = ?)", q.Tag)
	}
	if q.Search != "" {
		db = applySearch(db, q.Search)
	}
	return db
}

// Order returns the ORDER BY clause for q. Ties fall back to id descending.
func (q PostQuery) Order() string {
	parts, ok := parseSort(q.Sort)
	if !ok {
		parts, _ = parseSort(DefaultSort)
	}
	return strings.Join(append(parts, "posts.id DESC"), ", ")
}

func parseSort(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var parts []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }) {
		dir := "ASC"
		if strings.HasPrefix(field, "-") {
			dir = "DESC"
			field = field[1:]
		}
		col, ok := sortColumns[field]
		if !ok {
			return nil, false
		}
		parts = append(parts, fmt.Sprintf("%s %s", col, dir))
	}
	return parts, len(parts) > 0
}

// applySearch uses PostgreSQL full-text search and a LIKE scan elsewhere.
// An exact tag match counts as a hit on both.
func applySearch(db *gorm.DB, term string) *gorm.DB {
	tagMatch := "EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND LOWER(post_tags.name) = ?)"
	lowered := strings.ToLower(term)

	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return db.Where(
			"to_tsvector('english', posts.title || ' ' || posts.content) @@ plainto_tsquery('english', ?) OR "+tagMatch,
			term, lowered,
		)
	}

	like := "%" + escapeLike(lowered) + "%"
	return db.Where(
		"LOWER(posts.title) LIKE ? ESCAPE '\\' OR LOWER(posts.content) LIKE ? ESCAPE '\\' OR "+tagMatch,
		like, like, lowered,
	)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
