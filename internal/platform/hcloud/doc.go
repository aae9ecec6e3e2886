// Package hcloud implements provisioning.ResourceProvider on the Hetzner Cloud
// API with retry logic, timeout management, and drift detection.
//
// # Architecture
//
//   - real_client.go: client construction and options
//   - operations.go: generic Ensure and Delete operations
//   - image.go: machine image selection (name glob, architecture, ownership)
//   - ssh_key.go: SSH key registration
//   - firewall.go: inbound rule set management
//   - volume.go: block volumes with role and IOPS class labels
//   - server.go: server lifecycle with attached volumes and user data
//   - digest.go: spec digest stored as a server label
//   - cleanup.go: label-based sweep of leftover resources
//   - errors.go: error classification for retry logic
//
// # Idempotence
//
// Every Ensure call looks the resource up by its logical name first. An
// existing resource is returned unchanged when it matches the request and
// reported as *provisioning.DriftError when it does not; nothing is updated
// in place. Servers carry a digest of their creation inputs in the
// svmzner.io/spec-digest label so drift is detectable without user data,
// which the API does not return.
//
// # Retry and Timeout Configuration
//
// Timeouts and retry parameters come from config.LoadTimeouts:
//
//   - HCLOUD_TIMEOUT_SERVER_CREATE: Server creation timeout (default: 10m)
//   - HCLOUD_TIMEOUT_SERVER_IP: Public address polling timeout (default: 60s)
//   - HCLOUD_TIMEOUT_DELETE: Resource deletion timeout (default: 5m)
//   - HCLOUD_RETRY_MAX_ATTEMPTS: Maximum retry attempts (default: 5)
//   - HCLOUD_RETRY_INITIAL_DELAY: Initial retry delay (default: 1s)
package hcloud
