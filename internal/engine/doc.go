// Package engine implements the tablegen batch runner.
//
// A batch takes a list of document paths and processes them in three
// phases:
//  1. Schema documents, in path order. Each is decoded, validated, built
//     into a fresh declaration arena and rendered by every generator.
//  2. The operator document is compiled into the operator symbol table.
//  3. Rule documents, in path order, rendered against that table.
//
// ISOLATION:
// A document either commits all of its outputs or none. Outputs are
// rendered in memory first and written with write-to-temp + rename; any
// failure is recorded in that document's Result and the batch continues.
//
// CACHING:
// Each document has an opaque content fingerprint (see literal.Fingerprint).
// A document whose fingerprint matches the cached one and whose outputs
// still exist is skipped. Rule document fingerprints cover the operator
// document's fingerprint, so operator changes regenerate every rule
// document. A fingerprint is recorded only after the outputs are committed.
//
// The runner is single-threaded and deterministic: the same inputs produce
// the same outputs in the same order.
package engine
