// Package service holds the business rules between the HTTP handlers and the repositories.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"chronicle/internal/middleware"
	"chronicle/internal/models"

	"github.com/microcosm-cc/bluemonday"
)

// Tag limits match the post_tags.name column.
const (
	MaxTags      = 20
	MaxTagLength = 64
)

// FeedPublisher receives live feed events. *notifications.Notifier implements it.
type FeedPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// publish sends a feed event. A failed publish is logged and never fails the write.
func publish(ctx context.Context, feed FeedPublisher, eventType string, payload any) {
	if feed == nil {
		return
	}
	if err := feed.Publish(ctx, eventType, payload); err != nil {
		middleware.Logger.WarnContext(ctx, "feed publish failed",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}

// ugc is safe for concurrent use once built.
var ugc = bluemonday.UGCPolicy()

// SanitizeHTML strips markup that is not safe to render from user content.
func SanitizeHTML(s string) string {
	return strings.TrimSpace(ugc.Sanitize(s))
}

// ParseTags splits a comma separated tag string into trimmed, non-empty tags, keeping order.
func ParseTags(raw string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// CheckTags rejects tag lists the post_tags table cannot store.
func CheckTags(tags []string) error {
	if len(tags) > MaxTags {
		return models.NewValidationError(fmt.Sprintf("A post cannot have more than %d tags", MaxTags))
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return models.NewValidationError(fmt.Sprintf("Tags cannot be more than %d characters", MaxTagLength))
		}
	}
	return nil
}
