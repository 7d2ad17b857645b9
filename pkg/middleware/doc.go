// Package middleware provides per-client rate limiting for the catalog API.
//
// Every list and export request costs one primary fetch against the admin
// API, so clients are limited by IP address:
//
//	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute, BurstSize: 10})
//	handler = middleware.RateLimit(limiter, logger)(handler)
//
// RateLimiter is an in-memory token bucket. DistributedRateLimiter counts
// fixed windows in Redis so replicas share one budget; Redis errors fail open.
package middleware
