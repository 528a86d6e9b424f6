// Package client is a Go client for the Chronicle API.
//
// Client mirrors the REST endpoints one to one. Session wraps a Client with
// the signed-in user and persists credentials through a CredentialStore.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chronicle: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("chronicle: %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to one Chronicle API. It is safe for concurrent use.
type Client struct {
	baseURL        string
	timeout        time.Duration
	token          func() string
	onUnauthorized func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request that has no earlier context deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithToken makes the client send a static bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = func() string { return token } }
}

// New returns a Client for baseURL, e.g. "http://localhost:8375/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		token:   func() string { return "" },
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if tok := c.token(); tok != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	}
	if in != nil {
		agent.JSON(in)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("chronicle: %s %s: %w", method, path, err)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("chronicle: %s %s: %w", method, path, errors.Join(errs...))
	}

	if status >= fiber.StatusBadRequest {
		apiErr := &APIError{Status: status}
		var payload models.ErrorResponse
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Message, apiErr.Code = payload.Error, payload.Code
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		if status == fiber.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("chronicle: decode %s %s: %w", method, path, err)
	}
	return nil
}

func call[T any](ctx context.Context, c *Client, method, path string, in any) (*T, error) {
	var out T
	if err := c.do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func callList[T any](ctx context.Context, c *Client, method, path string, in any) ([]T, error) {
	out := make([]T, 0)
	if err := c.do(ctx, method, path, in, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuthResult is returned by Register, Login and UpdateProfile.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
}

// ProfileInput changes the signed-in user. Empty fields are left alone.
type ProfileInput struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Password string `json:"password,omitempty"`
}

// PostInput creates or updates a post. Tags is comma separated.
type PostInput struct {
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Excerpt  string `json:"excerpt,omitempty"`
	Category string `json:"category,omitempty"`
	Tags     string `json:"tags,omitempty"`
	Image    string `json:"image,omitempty"`
	Status   string `json:"status,omitempty"`
}

// PostFilter selects a page of posts. Zero values use the server defaults.
type PostFilter struct {
	Category string
	Tag      string
	Search   string
	Sort     string
	Status   string
	Page     int
	Limit    int
}

func (f PostFilter) encode() string {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("category", f.Category)
	set("tag", f.Tag)
	set("search", f.Search)
	set("sort", f.Sort)
	set("status", f.Status)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// PostPage is one page of the post listing.
type PostPage struct {
	Posts       []models.Post `json:"posts"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	TotalPosts  int64         `json:"totalPosts"`
}

// PostDetail is a post with its comments.
type PostDetail struct {
	Post     models.Post      `json:"post"`
	Comments []models.Comment `json:"comments"`
}

type likes struct {
	Likes int `json:"likes"`
}

func postPath(id uint) string    { return "/posts/" + strconv.FormatUint(uint64(id), 10) }
func commentPath(id uint) string { return "/comments/" + strconv.FormatUint(uint64(id), 10) }

func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	return call[AuthResult](ctx, c, fiber.MethodPost, "/auth/register", in)
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	return call[AuthResult](ctx, c, fiber.MethodPost, "/auth/login", body)
}

func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	return call[models.User](ctx, c, fiber.MethodGet, "/auth/profile", nil)
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileInput) (*AuthResult, error) {
	return call[AuthResult](ctx, c, fiber.MethodPut, "/auth/profile", in)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, fiber.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) ListPosts(ctx context.Context, f PostFilter) (*PostPage, error) {
	return call[PostPage](ctx, c, fiber.MethodGet, "/posts"+f.encode(), nil)
}

// GetPost fetches a post by numeric id or slug.
func (c *Client) GetPost(ctx context.Context, ref string) (*PostDetail, error) {
	return call[PostDetail](ctx, c, fiber.MethodGet, "/posts/"+url.PathEscape(ref), nil)
}

func (c *Client) CreatePost(ctx context.Context, in PostInput) (*models.Post, error) {
	return call[models.Post](ctx, c, fiber.MethodPost, "/posts", in)
}

func (c *Client) UpdatePost(ctx context.Context, id uint, in PostInput) (*models.Post, error) {
	return call[models.Post](ctx, c, fiber.MethodPut, postPath(id), in)
}

func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return c.do(ctx, fiber.MethodDelete, postPath(id), nil, nil)
}

func (c *Client) LikePost(ctx context.Context, id uint) (int, error) {
	var out likes
	err := c.do(ctx, fiber.MethodPut, postPath(id)+"/like", nil, &out)
	return out.Likes, err
}

func (c *Client) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	return callList[models.Comment](ctx, c, fiber.MethodGet, postPath(postID)+"/comments", nil)
}

func (c *Client) AddComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	return call[models.Comment](ctx, c, fiber.MethodPost, postPath(postID)+"/comments", map[string]string{"content": content})
}

func (c *Client) UpdateComment(ctx context.Context, id uint, content string) (*models.Comment, error) {
	return call[models.Comment](ctx, c, fiber.MethodPut, commentPath(id), map[string]string{"content": content})
}

func (c *Client) DeleteComment(ctx context.Context, id uint) error {
	return c.do(ctx, fiber.MethodDelete, commentPath(id), nil, nil)
}

// AddReply replies to a comment and returns the comment with its replies.
func (c *Client) AddReply(ctx context.Context, commentID uint, content string) (*models.Comment, error) {
	return call[models.Comment](ctx, c, fiber.MethodPost, commentPath(commentID)+"/replies", map[string]string{"content": content})
}

func (c *Client) LikeComment(ctx context.Context, id uint) (int, error) {
	var out likes
	err := c.do(ctx, fiber.MethodPut, commentPath(id)+"/like", nil, &out)
	return out.Likes, err
}

func (c *Client) ListAuthors(ctx context.Context) ([]models.Author, error) {
	return callList[models.Author](ctx, c, fiber.MethodGet, "/authors", nil)
}

func (c *Client) CreateAuthor(ctx context.Context, name, bio, avatar string) (*models.Author, error) {
	body := map[string]string{"name": name, "bio": bio, "avatar": avatar}
	return call[models.Author](ctx, c, fiber.MethodPost, "/authors", body)
}

func (c *Client) Categories(ctx context.Context) ([]string, error) {
	return callList[string](ctx, c, fiber.MethodGet, "/categories", nil)
}
