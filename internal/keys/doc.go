// Package keys generates and tracks the role key pairs a validator deployment
// needs: identity, vote, stake, faucet, and treasury.
//
// Key pairs are ed25519. Public keys render as base58; private material is
// carried as a secret.Value and encoded in the Solana keypair JSON format
// (a 64-element byte array) only at the secret store and remote boundaries.
package keys
