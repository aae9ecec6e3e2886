// Package labels provides consistent labeling for Hetzner Cloud resources.
//
// All labels use the svmzner.io domain prefix and follow a builder pattern
// for constructing label sets with deployment name, volume role, performance
// class and spec digest.
package labels
