// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes independent operations concurrently and returns
// all errors. [Graph] evaluates named nodes along their dependency edges
// with bounded parallelism; it drives the provisioning run.
package async
