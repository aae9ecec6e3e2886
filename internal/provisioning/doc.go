// Package provisioning holds the shared vocabulary of a validator deployment:
// resource specs and references, the ResourceProvider capability, the error
// taxonomy, and the Observer used for structured progress reporting.
//
// # Subpackages
//
//   - bootstrap/: first-boot script rendering for the declared volume map
//   - genesis/: Genesis Constructor (write-once genesis per ledger path)
//   - validator/: Validator Launcher (remote service configuration)
//
// Orchestration of these pieces lives in internal/orchestration.
package provisioning
