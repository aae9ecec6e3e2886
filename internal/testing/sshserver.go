package testing

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/util/keygen"
)

// ExecHandler serves one "exec" request and returns the exit status.
type ExecHandler func(command string, stdin io.Reader, stdout, stderr io.Writer) int

// SSHServer is an in-process SSH server that accepts a single client key and
// hands every exec request to a handler.
type SSHServer struct {
	Host string
	Port int
	// ClientKey is the PEM private key the server accepts.
	ClientKey secret.Value
	// ClientPublicKey is ClientKey's authorized_keys line.
	ClientPublicKey string

	listener net.Listener
	config   *ssh.ServerConfig
	handler  ExecHandler

	mu       sync.Mutex
	commands []string
	wg       sync.WaitGroup
}

// NewSSHServer starts a server on a random loopback port. It is stopped when
// the test ends.
func NewSSHServer(t *testing.T, handler ExecHandler) *SSHServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("failed to create host signer: %v", err)
	}

	client, err := keygen.GenerateED25519KeyPair(nil, "test")
	if err != nil {
		t.Fatalf("failed to generate client key: %v", err)
	}
	authorized, _, _, _, err := ssh.ParseAuthorizedKey(client.PublicKey)
	if err != nil {
		t.Fatalf("failed to parse client key: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorized.Marshal()) {
				return &ssh.Permissions{}, nil
			}
			return nil, errUnauthorized
		},
	}
	config.AddHostKey(hostSigner)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	host, port, _ := net.SplitHostPort(l.Addr().String())
	portNum, _ := strconv.Atoi(port)

	s := &SSHServer{
		Host:            host,
		Port:            portNum,
		ClientKey:       client.PrivateKey,
		ClientPublicKey: string(client.PublicKey),
		listener:        l,
		config:          config,
		handler:         handler,
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Close stops accepting connections and waits for open ones to finish.
func (s *SSHServer) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

// Commands returns every command received so far.
func (s *SSHServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *SSHServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

func (s *SSHServer) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	_, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions are supported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleSession(ch, requests)
		}()
	}
}

func (s *SSHServer) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer func() { _ = ch.Close() }()
	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		s.mu.Lock()
		s.commands = append(s.commands, payload.Command)
		s.mu.Unlock()

		code := s.handler(payload.Command, ch, ch, ch.Stderr())
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(code)}))
		return
	}
}

type sshError string

func (e sshError) Error() string { return string(e) }

const errUnauthorized = sshError("unauthorized key")
