// Package store provides the SQLite-backed fingerprint cache of tablegen.
//
// The cache remembers, per input document, the content fingerprint of the
// last successfully committed generation, so unchanged documents can be
// skipped. It holds no declaration, type or rule state: those models are
// rebuilt from scratch on every run.
//
// # Tables
//
//   - fingerprints: one row per document path (fingerprint, kind, updated_seq)
//   - runs: one row per batch (run id, seq, generated/skipped/failed counts)
//   - meta: key/value pairs, currently the generator version
//
// # Generator version gate
//
// Open records the running generator version. When the stored version is
// unparsable or differs from the running one in major or minor component,
// every fingerprint is discarded so all outputs are regenerated. Patch
// releases keep the cache.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Ordering uses the logical run counter (seq), never timestamps.
package store
