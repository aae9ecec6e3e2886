// Package testing provides fakes and servers shared by package tests.
//
//   - FakeProvider: in-memory provisioning.ResourceProvider with fault injection
//   - FakeHost: remote.Executor emulating the host-side genesis, launch and
//     readiness scripts
//   - SSHServer: in-process SSH server for the SSH transport
//   - S3Server: in-process S3 endpoint for the state backend
//
// Import it as testutil to avoid clashing with the standard library:
//
//	host := testutil.NewFakeHost()
//	provider := testutil.NewFakeProvider()
package testing
