package authz

import (
	"testing"

	"chronicle/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanModify(t *testing.T) {
	admin := Principal{ID: 1, Role: models.RoleAdmin}
	owner := Principal{ID: 2, Role: models.RoleUser}
	other := Principal{ID: 3, Role: models.RoleUser}
	anonymous := Principal{}

	tests := []struct {
		name     string
		p        Principal
		ownerID  uint
		expected bool
	}{
		{"admin may modify any resource", admin, 2, true},
		{"owner may modify own resource", owner, 2, true},
		{"other user may not modify", other, 2, false},
		{"anonymous may not modify orphaned resource", anonymous, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanModify(tt.p, tt.ownerID))
		})
	}
}

func TestAuthorize(t *testing.T) {
	err := Authorize(Principal{ID: 3, Role: models.RoleUser}, 2, "update", "post")

	var appErr *models.AppError
	if assert.ErrorAs(t, err, &appErr) {
		assert.Equal(t, models.CodeForbidden, appErr.Code)
		assert.Equal(t, "Not authorized to update this post", appErr.Message)
	}

	assert.NoError(t, Authorize(Principal{ID: 2}, 2, "delete", "comment"))
}

func TestFromUser(t *testing.T) {
	p := FromUser(&models.User{ID: 5, Role: models.RoleAdmin})
	assert.Equal(t, uint(5), p.ID)
	assert.True(t, p.IsAdmin())
}
