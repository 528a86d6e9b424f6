package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestReadTime(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "single word", content: "hello", want: "1 min read"},
		{name: "exactly one minute", content: strings.Repeat("word ", 200), want: "1 min read"},
		{name: "rounds up", content: strings.Repeat("word ", 201), want: "2 min read"},
		{name: "empty", content: "", want: "1 min read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadTime(tt.content))
		})
	}
}

func TestTagRowsRoundTripKeepsOrder(t *testing.T) {
	rows := TagRowsFor(7, []string{"go", "web", "api"})
	assert.Equal(t, 2, rows[2].Position)
	assert.Equal(t, uint(7), rows[0].PostID)
	assert.Equal(t, []string{"go", "web", "api"}, TagNames(rows))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusNotFound, StatusFor(NewNotFoundError("Post", 1)))
	assert.Equal(t, fiber.StatusForbidden, StatusFor(NewForbiddenError("no")))
	assert.Equal(t, fiber.StatusBadRequest, StatusFor(NewValidationError("bad")))
	assert.Equal(t, fiber.StatusUnauthorized, StatusFor(NewUnauthorizedError("who")))
	assert.Equal(t, fiber.StatusConflict, StatusFor(NewConflictError("dup", nil)))
	assert.Equal(t, fiber.StatusInternalServerError, StatusFor(errors.New("boom")))

	wrapped := fmt.Errorf("loading: %w", NewNotFoundError("Comment", 3))
	assert.Equal(t, fiber.StatusNotFound, StatusFor(wrapped))
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeForbidden))
}
