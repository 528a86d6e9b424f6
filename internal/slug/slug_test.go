package slug

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello, World!", "hello-world"},
		{"  Go   Concurrency Patterns  ", "go-concurrency-patterns"},
		{"Crème Brûlée à la carte", "creme-brulee-a-la-carte"},
		{"C++ & Rust -- 2024", "c-rust-2024"},
		{"!!!", Fallback},
		{"", Fallback},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.title))
		})
	}
}

type takenSet map[string]uint

func (s takenSet) exists(_ context.Context, slug string, excludeID uint) (bool, error) {
	owner, ok := s[slug]
	if !ok {
		return false, nil
	}
	return owner != excludeID, nil
}

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestResolve_FreeBase(t *testing.T) {
	r := NewResolver(takenSet{}.exists)

	got, err := r.Resolve(context.Background(), "Hello, World!", 0)

	require.NoError(t, err)
	assert.Equal(t, "hello-world", got)
}

func TestResolve_CollisionAppendsFourDigits(t *testing.T) {
	collisions := 0
	r := &Resolver{
		Exists:      takenSet{"hello-world": 1}.exists,
		Now:         fixedClock(1_700_000_123_456),
		OnCollision: func() { collisions++ },
	}

	got, err := r.Resolve(context.Background(), "Hello, World!", 0)

	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^hello-world-\d{4}$`), got)
	assert.Equal(t, "hello-world-3456", got)
	assert.Equal(t, 1, collisions)
}

func TestResolve_SuffixCollisionIsRechecked(t *testing.T) {
	taken := takenSet{"hello-world": 1, "hello-world-3456": 2, "hello-world-3457": 3}
	r := &Resolver{Exists: taken.exists, Now: fixedClock(1_700_000_123_456)}

	got, err := r.Resolve(context.Background(), "Hello World", 0)

	require.NoError(t, err)
	assert.Equal(t, "hello-world-3458", got)
}

func TestResolve_OwnSlugIsNotACollision(t *testing.T) {
	r := NewResolver(takenSet{"hello-world": 9}.exists)

	got, err := r.Resolve(context.Background(), "Hello World", 9)

	require.NoError(t, err)
	assert.Equal(t, "hello-world", got)
}

func TestResolve_Exhausted(t *testing.T) {
	always := func(context.Context, string, uint) (bool, error) { return true, nil }
	r := &Resolver{Exists: always, Now: fixedClock(42), MaxAttempts: 3}

	_, err := r.Resolve(context.Background(), "anything", 0)

	assert.ErrorIs(t, err, ErrExhausted)
}

func TestResolve_LookupError(t *testing.T) {
	boom := errors.New("db down")
	r := NewResolver(func(context.Context, string, uint) (bool, error) { return false, boom })

	_, err := r.Resolve(context.Background(), "anything", 0)

	assert.ErrorIs(t, err, boom)
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "a-0042", WithSuffix("a", 42))
	assert.Equal(t, "a-9999", WithSuffix("a", 1239999))
}
