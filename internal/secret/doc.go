// Package secret models private key material as an owned, non-serializable
// handle and persists it only in sealed (age-encrypted) form.
//
// A [Value] formats as "[REDACTED]" and refuses every marshaling interface,
// so it cannot reach logs, diffs, or the deployment record by accident.
// Plaintext is obtained with [Value.Reveal], which callers scope to the single
// remote call that needs it.
//
// [SealedStore] implements the generate-once contract: an ID is written once,
// read many times, and removed only on explicit teardown.
package secret
