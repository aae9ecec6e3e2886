// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay, maximum delay and multiplier on top of go-retry. It is used for
// Hetzner Cloud API calls, SSH connects and transient remote apply faults.
package retry
