// Package memory configures Go's runtime memory limit and watches heap
// usage so the thumbnail cache can shed load before the container is
// OOM-killed.
//
// GOMEMLIMIT must be configured explicitly (unlike GOMAXPROCS, Go does not
// detect it from cgroup limits). Call [ConfigureFromEnv] early in main,
// before significant allocations:
//
//	func main() {
//	    memory.ConfigureFromEnv()
//	    // ...
//	}
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container memory limit in bytes, typically injected via
//     the Kubernetes Downward API.
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT to give the Go heap
//     (default 0.85; lower it when ffmpeg or CGO image decoding needs
//     headroom).
//
// [Monitor] samples heap usage on an interval and fires registered
// pressure handlers when usage crosses the critical watermark. The memory
// thumbnail cache registers its half-eviction hook there.
package memory
