package client

import (
	"context"
	"sync"

	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Session is the signed-in state of one API user.
//
// Credentials are loaded from the store once, written whenever the server
// issues a new token and cleared on logout or any 401 response.
type Session struct {
	mu    sync.RWMutex
	store CredentialStore
	creds *Credentials
	api   *Client
}

// NewSession builds a Client for baseURL and restores stored credentials.
func NewSession(baseURL string, store CredentialStore, opts ...Option) (*Session, error) {
	if store == nil {
		store = &MemoryStore{}
	}
	creds, err := store.Load()
	if err != nil {
		return nil, err
	}

	s := &Session{store: store, creds: creds}
	s.api = New(baseURL, opts...)
	s.api.token = s.Token
	s.api.onUnauthorized = s.forget
	return s, nil
}

// API returns the client that carries this session's token.
func (s *Session) API() *Client { return s.api }

// Token returns the current bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil {
		return ""
	}
	return s.creds.Token
}

// User returns the signed-in user, or nil.
func (s *Session) User() *StoredUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.creds == nil || s.creds.User == nil {
		return nil
	}
	u := *s.creds.User
	return &u
}

func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

// IsAdmin reports whether the signed-in user has the admin role.
func (s *Session) IsAdmin() bool {
	u := s.User()
	return u != nil && u.Role == models.RoleAdmin
}

func (s *Session) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	res, err := s.api.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return res.User, s.remember(res)
}

func (s *Session) Login(ctx context.Context, email, password string) (*models.User, error) {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return res.User, s.remember(res)
}

// UpdateProfile saves the refreshed token and user returned by the server.
func (s *Session) UpdateProfile(ctx context.Context, in ProfileInput) (*models.User, error) {
	res, err := s.api.UpdateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	return res.User, s.remember(res)
}

// Logout revokes the token server-side and always clears local credentials.
func (s *Session) Logout(ctx context.Context) error {
	var err error
	if s.IsAuthenticated() {
		err = s.api.Logout(ctx)
	}
	if clearErr := s.clear(); clearErr != nil {
		return clearErr
	}
	if IsStatus(err, fiber.StatusUnauthorized) {
		return nil
	}
	return err
}

func (s *Session) remember(res *AuthResult) error {
	creds := &Credentials{Token: res.Token}
	if u := res.User; u != nil {
		creds.User = &StoredUser{ID: u.ID, Username: u.Username, Email: u.Email, Name: u.Name, Role: u.Role}
	}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return s.store.Save(creds)
}

func (s *Session) clear() error {
	s.mu.Lock()
	s.creds = nil
	s.mu.Unlock()
	return s.store.Clear()
}

// forget drops credentials after the server rejected them.
func (s *Session) forget() {
	_ = s.clear()
}
