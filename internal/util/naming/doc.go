// Package naming provides consistent naming functions for Hetzner Cloud resources.
//
// The server, firewall and SSH key carry the deployment name; volumes are
// named {deployment}-{role} so each logical store maps to exactly one volume.
package naming
