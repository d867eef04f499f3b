// Package filesystem provides small filesystem primitives shared by the
// cache tiers: atomic file writes (temp file + rename) and retry wrappers
// for NFS stale file handle errors on network-mounted cache volumes.
package filesystem
