// Package ssh provides an SSH client for running commands on the validator
// host.
//
// Connections are established on demand with retry logic, which covers the
// window between server creation and sshd accepting connections. Commands
// take stdin, so key material reaches the host without ever appearing on a
// command line. Connection failures surface as *ConnectionError, which
// reports itself as transient; non-zero exit statuses are returned as data.
package ssh
