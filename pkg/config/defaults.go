package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "lodgic"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// Advisory lock auto-expiry; long enough for a check-then-insert
	// transaction, short enough that a crashed holder does not wedge a unit.
	DefaultUnitLockTTL = 10 * time.Second

	DefaultDefaultMinStayDays = 1
	DefaultDefaultMaxGuests   = 4

	DefaultPaginationLimit = 100

	// Cancellation/rejection reasons are truncated to this length.
	MaxReasonLength = 500
)
