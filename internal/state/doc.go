// Package state persists the deployment record and the sealed secret blobs.
//
// A [Record] holds resource references, key references, stage progress and
// genesis/validator digests; it never holds private key material. Records
// are CBOR-encoded and kept in a local bbolt file ([BoltStore]), an S3
// bucket ([S3Store]), or memory ([MemoryStore], for tests). Every backend is
// also the blob storage underneath [secret.SealedStore].
package state
