package testing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"

	"github.com/imamik/svmzner/internal/provisioning/bootstrap"
	"github.com/imamik/svmzner/internal/provisioning/genesis"
	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/remote"
)

// TransientError is a connection failure injected by FakeHost.
type TransientError struct {
	Msg string
}

func (e *TransientError) Error() string   { return e.Msg }
func (e *TransientError) Transient() bool { return true }

// FakeCall records one payload received by FakeHost.
type FakeCall struct {
	Addr      string
	Operation string
	Vars      map[string]string
	// HadStdin reports whether secret material was sent.
	HadStdin bool
}

// KeyFile is a keypair file written by the launch script.
type KeyFile struct {
	Content string
	Mode    string
}

// FakeHost implements remote.Executor by emulating the host-side scripts
// in memory. It keeps one ledger store and one validator service per host
// address.
type FakeHost struct {
	mu sync.Mutex

	markers   map[string]*genesis.Marker // by addr|ledger
	pending   map[string]bool
	unmanaged map[string]bool
	// ledgerHash overrides what the ledger tool reports for a ledger.
	ledgerHash map[string]string

	running  map[string]bool
	digest   map[string]string
	keyFiles map[string]map[string]KeyFile

	notReady    int
	faults      map[string][]error
	interrupted map[string]int

	calls       []FakeCall
	inFlight    map[string]int
	maxInFlight int
}

// NewFakeHost creates an empty, ready host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		markers:     map[string]*genesis.Marker{},
		pending:     map[string]bool{},
		unmanaged:   map[string]bool{},
		ledgerHash:  map[string]string{},
		running:     map[string]bool{},
		digest:      map[string]string{},
		keyFiles:    map[string]map[string]KeyFile{},
		faults:      map[string][]error{},
		interrupted: map[string]int{},
		inFlight:    map[string]int{},
	}
}

// FakeFingerprint is the genesis hash FakeHost reports for a spec digest.
func FakeFingerprint(specDigest string) genesis.Fingerprint {
	sum := blake3.Sum256([]byte(specDigest))
	return genesis.Fingerprint(base58.Encode(sum[:]))
}

// FailNext makes the next call of operation fail with err before doing anything.
func (h *FakeHost) FailNext(operation string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.faults[operation] = append(h.faults[operation], err)
}

// InterruptCreate makes the next n genesis creates stop after staging, as if
// the connection dropped before the commit.
func (h *FakeHost) InterruptCreate(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interrupted[genesis.OperationCreate] = n
}

// SetBooting makes the next n readiness probes report an unfinished first boot.
func (h *FakeHost) SetBooting(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notReady = n
}

// SetUnmanagedGenesis places a genesis without marker at ledger.
func (h *FakeHost) SetUnmanagedGenesis(addr, ledger string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmanaged[addr+"|"+ledger] = true
}

// SetLedgerHash overrides the genesis hash the ledger tool reports.
func (h *FakeHost) SetLedgerHash(addr, ledger, hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledgerHash[addr+"|"+ledger] = hash
}

// Marker returns the committed genesis marker, or nil.
func (h *FakeHost) Marker(addr, ledger string) *genesis.Marker {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.markers[addr+"|"+ledger]; m != nil {
		c := *m
		return &c
	}
	return nil
}

// Running reports whether the validator service runs and its config digest.
func (h *FakeHost) Running(addr string) (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running[addr], h.digest[addr]
}

// KeyFiles returns the keypair files written on addr by name.
func (h *FakeHost) KeyFiles(addr string) map[string]KeyFile {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := map[string]KeyFile{}
	for k, v := range h.keyFiles[addr] {
		out[k] = v
	}
	return out
}

// Calls returns every payload received so far.
func (h *FakeHost) Calls() []FakeCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FakeCall(nil), h.calls...)
}

// CallCount counts the calls of operation.
func (h *FakeHost) CallCount(operation string) int {
	n := 0
	for _, c := range h.Calls() {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

// Operations lists the operation of every call in order.
func (h *FakeHost) Operations() []string {
	var ops []string
	for _, c := range h.Calls() {
		ops = append(ops, c.Operation)
	}
	return ops
}

// MaxInFlight is the highest number of payloads that ran at once on one host.
func (h *FakeHost) MaxInFlight() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxInFlight
}

// Execute implements remote.Executor.
func (h *FakeHost) Execute(ctx context.Context, conn remote.Descriptor, p remote.Payload) (remote.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return remote.Outcome{}, err
	}
	addr := conn.Addr()

	h.mu.Lock()
	vars := make(map[string]string, len(p.Vars))
	for k, v := range p.Vars {
		vars[k] = v
	}
	h.calls = append(h.calls, FakeCall{Addr: addr, Operation: p.Operation, Vars: vars, HadStdin: !p.Stdin.IsZero()})
	if queued := h.faults[p.Operation]; len(queued) > 0 {
		h.faults[p.Operation] = queued[1:]
		h.mu.Unlock()
		return remote.Outcome{}, queued[0]
	}
	h.inFlight[addr]++
	if h.inFlight[addr] > h.maxInFlight {
		h.maxInFlight = h.inFlight[addr]
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.inFlight[addr]--
		h.mu.Unlock()
	}()

	switch p.Operation {
	case bootstrap.OperationHostReady:
		return h.hostReady()
	case genesis.OperationProbe:
		return h.genesisProbe(addr, p.Vars["LEDGER"])
	case genesis.OperationCreate:
		return h.genesisCreate(addr, p.Vars["LEDGER"], p.Vars["SPEC_DIGEST"])
	case validator.OperationLaunch:
		return h.launch(addr, p)
	case validator.OperationStatus:
		return h.status(addr)
	default:
		return remote.Outcome{ExitCode: 127, Stderr: "unknown operation " + p.Operation}, nil
	}
}

func (h *FakeHost) hostReady() (remote.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.notReady > 0 {
		h.notReady--
		return remote.Outcome{ExitCode: 21, Stdout: "first boot has not finished\n"}, nil
	}
	return remote.Outcome{Stdout: "ready\n"}, nil
}

func (h *FakeHost) genesisProbe(addr, ledger string) (remote.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := addr + "|" + ledger
	if m := h.markers[key]; m != nil {
		return markerOutcome(m)
	}
	if h.unmanaged[key] && !h.pending[key] {
		return remote.Outcome{ExitCode: genesis.ExitUnmanaged, Stdout: "ledger holds a genesis that was not created by svmzner\n"}, nil
	}
	return remote.Outcome{ExitCode: genesis.ExitAbsent}, nil
}

func (h *FakeHost) genesisCreate(addr, ledger, digest string) (remote.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := addr + "|" + ledger
	if m := h.markers[key]; m != nil {
		return markerOutcome(m)
	}
	if h.unmanaged[key] && !h.pending[key] {
		return remote.Outcome{ExitCode: genesis.ExitUnmanaged}, nil
	}

	h.pending[key] = true
	if h.interrupted[genesis.OperationCreate] > 0 {
		h.interrupted[genesis.OperationCreate]--
		return remote.Outcome{}, &TransientError{Msg: "connection reset by peer"}
	}

	m := &genesis.Marker{
		SpecDigest:  digest,
		Fingerprint: FakeFingerprint(digest),
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	h.markers[key] = m
	delete(h.pending, key)
	delete(h.unmanaged, key)
	return markerOutcome(m)
}

func (h *FakeHost) launch(addr string, p remote.Payload) (remote.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ledger := p.Vars["LEDGER"]
	key := addr + "|" + ledger

	actual := "none"
	if m := h.markers[key]; m != nil {
		actual = string(m.Fingerprint)
	}
	if override, ok := h.ledgerHash[key]; ok {
		actual = override
	}
	if actual != p.Vars["EXPECTED_GENESIS"] {
		return remote.Outcome{ExitCode: validator.ExitGenesisMismatch, Stdout: actual + "\n"}, nil
	}

	files := h.keyFiles[addr]
	if files == nil {
		files = map[string]KeyFile{}
		h.keyFiles[addr] = files
	}
	raw := p.Stdin.Reveal()
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		name, content, ok := strings.Cut(sc.Text(), " ")
		if ok && name != "" {
			files[name] = KeyFile{Content: content, Mode: "0600"}
		}
	}
	for i := range raw {
		raw[i] = 0
	}

	want := p.Vars["CONFIG_DIGEST"]
	switch {
	case h.running[addr] && h.digest[addr] == want:
		return remote.Outcome{Stdout: string(validator.StatusAlreadyRunning) + "\n"}, nil
	case h.running[addr]:
		h.digest[addr] = want
		return remote.Outcome{Stdout: string(validator.StatusRestarted) + "\n"}, nil
	default:
		h.running[addr] = true
		h.digest[addr] = want
		return remote.Outcome{Stdout: string(validator.StatusStarted) + "\n"}, nil
	}
}

func (h *FakeHost) status(addr string) (remote.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, digest := "inactive", "none"
	if h.running[addr] {
		state = "active"
	}
	if d := h.digest[addr]; d != "" {
		digest = d
	}
	return remote.Outcome{Stdout: state + " " + digest + "\n"}, nil
}

// StopService simulates the validator service stopping on addr.
func (h *FakeHost) StopService(addr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running[addr] = false
}

func markerOutcome(m *genesis.Marker) (remote.Outcome, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return remote.Outcome{}, fmt.Errorf("failed to encode marker: %w", err)
	}
	return remote.Outcome{Stdout: string(data) + "\n"}, nil
}

var _ remote.Executor = (*FakeHost)(nil)
