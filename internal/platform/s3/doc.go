// Package s3 provides a client for Hetzner Object Storage (S3-compatible).
//
// It handles bucket creation and object storage for the remote deployment
// state backend, which keeps the deployment record and age-sealed secrets
// in a bucket shared by every operator of the deployment.
package s3
