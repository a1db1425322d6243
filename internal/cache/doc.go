// Package cache decides whether an artifact is up to date by content, not by
// timestamp.
//
// Every node gets a key: a sha256 over its kind, target descriptor hash,
// fingerprint, the digests of its source files and the keys of its
// dependencies. After a successful action a stamp recording that key and the
// digest of every output is written atomically. A node is fresh when its
// stamp matches the freshly computed key and every output still has the
// recorded digest.
package cache
