// Package slug derives URL slugs from post titles and keeps them unique.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when a title contains nothing slug-worthy.
const Fallback = "post"

// DefaultMaxAttempts bounds the suffix search in Resolve.
const DefaultMaxAttempts = 20

// ErrExhausted is returned when no free slug was found within MaxAttempts.
var ErrExhausted = errors.New("slug: no unique candidate found")

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases title, strips accents and joins alphanumeric runs with hyphens.
func Make(title string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), title)
	if err != nil {
		folded = title
	}
	s := nonAlnum.ReplaceAllString(strings.ToLower(folded), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return Fallback
	}
	return s
}

// ExistsFunc reports whether slug is taken by a post other than excludeID.
// excludeID is zero for new posts.
type ExistsFunc func(ctx context.Context, slug string, excludeID uint) (bool, error)

// Resolver picks a slug for a title that no other post owns.
type Resolver struct {
	Exists      ExistsFunc
	Now         func() time.Time
	MaxAttempts int
	// OnCollision is called once per taken candidate.
	OnCollision func()
}

// NewResolver returns a Resolver with the default clock and attempt limit.
func NewResolver(exists ExistsFunc) *Resolver {
	return &Resolver{Exists: exists, Now: time.Now, MaxAttempts: DefaultMaxAttempts}
}

// Resolve returns Make(title) when free, otherwise the first free
// "<base>-DDDD" candidate where DDDD comes from the epoch-millisecond clock.
func (r *Resolver) Resolve(ctx context.Context, title string, excludeID uint) (string, error) {
	base := Make(title)

	taken, err := r.Exists(ctx, base, excludeID)
	if err != nil {
		return "", err
	}
	if !taken {
		return base, nil
	}
	r.collided()

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	ms := now().UnixMilli()
	for i := 0; i < attempts; i++ {
		candidate := WithSuffix(base, ms+int64(i))
		taken, err := r.Exists(ctx, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		r.collided()
	}
	return "", fmt.Errorf("%w for %q after %d attempts", ErrExhausted, base, attempts)
}

// WithSuffix appends the last four digits of n to base.
func WithSuffix(base string, n int64) string {
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%s-%04d", base, n%10000)
}

func (r *Resolver) collided() {
	if r.OnCollision != nil {
		r.OnCollision()
	}
}
