// Package observability provides metrics and tracing instrumentation.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MongoQueryLatency records MongoDB query latency by operation and collection.
	MongoQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ripple_mongo_query_latency_seconds",
		Help:    "MongoDB query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// MediaUploads counts media uploads by outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_media_uploads_total",
		Help: "Total number of media uploads by outcome",
	}, []string{"outcome"})

	// FollowWrites counts follow/unfollow mutations by direction.
	FollowWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_follow_writes_total",
		Help: "Total number of follow/unfollow mutations",
	}, []string{"direction"})
)

// ObserveMongoQuery records a single query's latency.
func ObserveMongoQuery(operation, collection string, start time.Time) {
	MongoQueryLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
}
