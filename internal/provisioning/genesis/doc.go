// Package genesis builds the ledger's genesis on the validator host.
//
// Genesis is write-once per ledger path. Every committed genesis carries a
// marker file at <ledger>/.svmzner/genesis.json recording the digest of the
// Spec it was built from and the resulting fingerprint. Apply always probes
// for that marker first:
//
//   - marker with the same digest: the recorded fingerprint is returned and
//     nothing is written
//   - marker with another digest: *provisioning.GenesisConflictError
//   - no marker: genesis is built in a staging directory and committed by
//     renaming the marker into place
//
// A run cut off before the marker rename leaves a pending file behind and is
// rebuilt from scratch by the next Apply. A genesis.bin without marker or
// pending file was not created here and is reported as a conflict.
package genesis
