// Package bootstrap renders the first-boot script that prepares the
// validator host and checks that it ran.
//
// The script is passed to the provider verbatim as user data. It formats
// each declared volume once (a device that already carries a filesystem is
// never reformatted), records it in /etc/fstab and mounts it, so a reboot or
// a second run leaves the host unchanged. When it finishes it writes
// MarkerPath, which CheckReady looks for before any ledger work starts.
package bootstrap
