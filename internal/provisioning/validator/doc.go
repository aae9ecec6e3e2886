// Package validator configures and (re)starts the validator service.
//
// Launch checks the Config locally, then runs a single remote script that
// refuses to touch anything when the ledger's genesis hash differs from the
// expected fingerprint. Otherwise it writes the role keypair files (received
// on stdin, never on the command line), the start script and the systemd
// unit, and compares the config digest with the one the running service was
// started with. A matching digest on an active service is a no-op.
package validator
