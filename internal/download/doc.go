// Package download caches whole media files (video, audio) on disk for
// offline playback. Files are always stored unencrypted: the consuming
// media pipeline needs raw filesystem access even when key material is
// unavailable.
//
// One bulk download runs at a time; items in a batch download strictly
// sequentially in input order. Cancellation is cooperative and per-item
// failures do not abort the batch.
package download
