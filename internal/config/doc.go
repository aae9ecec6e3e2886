// Package config defines the deployment configuration model.
//
// The [Config] struct is the canonical representation of a validator
// deployment's desired state: server placement, the machine image filter,
// firewall rules, the volume map, genesis allocations, validator runtime
// settings and the state backend. It is read from svmzner.yaml; missing
// values are filled by [Config.ApplyDefaults] and checked by [Config.Validate].
package config
