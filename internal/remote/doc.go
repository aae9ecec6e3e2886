// Package remote is the channel between the orchestrator and the validator
// host: a Descriptor says how to reach the host, a Payload says what to run,
// and an Executor runs it. Descriptors hold the SSH credential as a
// secret.Value and are rebuilt from the instance on every run; they are
// never persisted.
package remote
