package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronicle_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronicle_cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	// SlugCollisions counts slug candidates that were already taken.
	SlugCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_slug_collisions_total",
		Help: "Slug candidates rejected because another post owns them",
	})

	// PostsCreated counts created posts by initial status.
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronicle_posts_created_total",
		Help: "Posts created by initial status",
	}, []string{"status"})

	// FeedConnections is the gauge of open live-feed websocket connections.
	FeedConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronicle_feed_connections",
		Help: "Open live feed websocket connections",
	})

	// FeedDrops counts feed events dropped because a client was too slow.
	FeedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chronicle_feed_backpressure_drops_total",
		Help: "Feed events dropped due to backpressure",
	})
)
