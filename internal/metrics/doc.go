// Package metrics defines the Prometheus metrics exported by the media
// cache daemon. Metrics are registered via promauto at package init and
// served on a dedicated listener (see Serve).
package metrics
