package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomdrop_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomdrop_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Room lifecycle
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomdrop_rooms_created_total",
			Help: "Total rooms created",
		},
	)

	RoomsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomdrop_rooms_deleted_total",
			Help: "Total rooms explicitly deleted",
		},
	)

	RoomCodeCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomdrop_room_code_collisions_total",
			Help: "Generated room codes that were already taken",
		},
	)

	MessagesPosted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomdrop_messages_posted_total",
			Help: "Total messages posted",
		},
		[]string{"type"}, // "text" or "file"
	)

	MessagesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomdrop_messages_removed_total",
			Help: "Total messages removed from rooms",
		},
	)

	UploadTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomdrop_upload_tokens_total",
			Help: "Upload token requests by result",
		},
		[]string{"result"}, // "issued", "failed" or "rejected"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomdrop_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomdrop_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roomdrop_store_latency_seconds",
			Help:    "Room store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"backend", "op"},
	)
)
