package middleware

import (
	"errors"
	"net/http/httptest"
	"testing"

	"chronicle/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() { observability.Tracer = prev })
	return sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingMiddleware(t *testing.T) {
	sr := recordSpans(t)

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Get("/api/posts/:id", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("kaput") })
	app.Get("/health/live", func(c *fiber.Ctx) error { return c.SendString("alive") })

	resp, err := app.Test(httptest.NewRequest("GET", "/api/posts/hello-world", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest("GET", "/health/live", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	post := spans[0]
	assert.Equal(t, "GET /api/posts/:id", post.Name())
	route, ok := attrValue(post.Attributes(), "http.route")
	require.True(t, ok)
	assert.Equal(t, "/api/posts/:id", route.AsString())
	code, ok := attrValue(post.Attributes(), "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(200), code.AsInt64())
	assert.Equal(t, codes.Unset, post.Status().Code)

	boom := spans[1]
	assert.Equal(t, "GET /boom", boom.Name())
	assert.Equal(t, codes.Error, boom.Status().Code)
	code, _ = attrValue(boom.Attributes(), "http.response.status_code")
	assert.Equal(t, int64(500), code.AsInt64())
}
