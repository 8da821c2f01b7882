// Package cache implements the filesystem-backed cache backend. Entries live
// as single files under one cache directory; the file name is derived from the
// MD5 digest of the caller's id through configurable templates, and the file
// mtime is the only expiry signal. Values pass through an optional
// serialize (msgpack) → compress (zlib) pipeline on Store and the reverse on
// Load. Clean sweeps the directory and deletes entries whose mtime plus
// lifetime has passed, isolating per-entry failures so one stuck file never
// blocks the rest of the sweep.
package cache
