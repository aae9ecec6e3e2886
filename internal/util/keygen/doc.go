// Package keygen generates ed25519 key pairs for SSH authentication.
//
// The private key is produced in OpenSSH PEM format and held as a
// [secret.Value]; the public key is in authorized_keys format, suitable for
// uploading to Hetzner Cloud as an SSH key.
package keygen
