package naming

import "fmt"

// Naming functions for deployment resources.
// All Hetzner Cloud resources follow consistent naming patterns to enable
// easy identification and teardown.

func Server(deployment string) string {
	return deployment
}

func Firewall(deployment string) string {
	return deployment
}

func SSHKey(deployment string) string {
	return deployment
}

func Volume(deployment, role string) string {
	return fmt.Sprintf("%s-%s", deployment, role)
}
