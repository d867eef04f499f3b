// Package workers provides helpers for sizing worker pools and concurrency
// gates in containerized environments.
//
// Go 1.19+ sets GOMAXPROCS from container CPU limits, so the helpers here
// derive counts from runtime.GOMAXPROCS rather than runtime.NumCPU (which
// reports host CPUs and ignores cgroup constraints). Operators can override
// the computed value with the CACHE_WORKERS environment variable.
package workers
