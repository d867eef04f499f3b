// Package middleware provides HTTP middleware for the cache service:
// request logging in W3C Extended Log Format and Prometheus request
// metrics, with configurable filtering for health checks.
package middleware
