// Package rdns renders reverse DNS names for the validator host.
//
// Templates use {{ name }} placeholders: deployment, hostname, id,
// location, ip-type and ip-labels (the address in PTR label order).
package rdns
