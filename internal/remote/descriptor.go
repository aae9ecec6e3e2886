package remote

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/imamik/svmzner/internal/provisioning"
	"github.com/imamik/svmzner/internal/secret"
)

// Descriptor is everything needed to open a session on the host.
type Descriptor struct {
	Host       string
	Port       int
	User       string
	Credential secret.Value
}

// Addr returns host:port.
func (d Descriptor) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String renders the descriptor without its credential.
func (d Descriptor) String() string {
	return d.User + "@" + d.Addr()
}

// Build derives the descriptor for instance. It does not wait or retry: an
// instance without a public address yields *provisioning.IncompleteInstanceError.
func Build(instance *provisioning.ComputeInstance, credential secret.Value, user string, port int) (Descriptor, error) {
	if instance == nil {
		return Descriptor{}, &provisioning.IncompleteInstanceError{InstanceID: "<none>", Reason: "instance does not exist"}
	}
	if instance.PublicAddress == "" {
		return Descriptor{}, &provisioning.IncompleteInstanceError{
			InstanceID: strconv.FormatInt(instance.ID, 10),
			Reason:     "no public address assigned",
		}
	}
	if credential.IsZero() {
		return Descriptor{}, errors.New("ssh credential is empty")
	}
	if user == "" {
		user = "root"
	}
	if port == 0 {
		port = 22
	}
	if port < 1 || port > 65535 {
		return Descriptor{}, fmt.Errorf("invalid ssh port %d", port)
	}
	return Descriptor{
		Host:       instance.PublicAddress,
		Port:       port,
		User:       user,
		Credential: credential,
	}, nil
}
