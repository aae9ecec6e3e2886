package state

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/imamik/svmzner/internal/keys"
	"github.com/imamik/svmzner/internal/provisioning"
)

// Stage is the lifecycle position of a deployment.
type Stage string

const (
	StageInit                  Stage = "Init"
	StageResourcesProvisioning Stage = "ResourcesProvisioning"
	StageKeysGenerated         Stage = "KeysGenerated"
	StageGenesisApplying       Stage = "GenesisApplying"
	StageGenesisReady          Stage = "GenesisReady"
	StageValidatorLaunching    Stage = "ValidatorLaunching"
	StageRunning               Stage = "Running"
	StageFailed                Stage = "Failed"
)

var stageOrder = map[Stage]int{
	StageInit:                  0,
	StageResourcesProvisioning: 1,
	StageKeysGenerated:         2,
	StageGenesisApplying:       3,
	StageGenesisReady:          4,
	StageValidatorLaunching:    5,
	StageRunning:               6,
}

// Rank orders non-terminal stages. Failed ranks below Init.
func (s Stage) Rank() int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	return -1
}

// Failure describes why the last run stopped.
type Failure struct {
	Stage Stage
	Node  string
	Cause string
	At    time.Time
}

// Record is the persisted state of one deployment.
type Record struct {
	Deployment string
	Stage      Stage
	Failure    *Failure `cbor:",omitempty"`
	// Warnings lists optional steps that failed without stopping the run.
	Warnings []string `cbor:",omitempty"`

	Image    provisioning.ImageRef
	SSHKey   provisioning.SSHKeyRef
	Firewall provisioning.NetworkRuleSetRef
	Volumes  map[string]provisioning.VolumeRef
	Instance *provisioning.ComputeInstance `cbor:",omitempty"`

	// Keys references the sealed role keys.
	Keys map[keys.Role]keys.Ref
	// SSHPrivateKeyID references the sealed SSH private key.
	SSHPrivateKeyID string

	GenesisDigest      string
	GenesisFingerprint string
	ValidatorDigest    string
	LaunchStatus       string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRecord creates an empty record for deployment.
func NewRecord(deployment string) *Record {
	now := time.Now().UTC()
	return &Record{
		Deployment: deployment,
		Stage:      StageInit,
		Volumes:    map[string]provisioning.VolumeRef{},
		Keys:       map[keys.Role]keys.Ref{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	out := *r
	if r.Failure != nil {
		f := *r.Failure
		out.Failure = &f
	}
	out.Warnings = append([]string(nil), r.Warnings...)
	out.Volumes = make(map[string]provisioning.VolumeRef, len(r.Volumes))
	for k, v := range r.Volumes {
		out.Volumes[k] = v
	}
	out.Keys = make(map[keys.Role]keys.Ref, len(r.Keys))
	for k, v := range r.Keys {
		out.Keys[k] = v
	}
	if r.Instance != nil {
		inst := *r.Instance
		inst.Volumes = append([]provisioning.AttachedVolume(nil), r.Instance.Volumes...)
		out.Instance = &inst
	}
	return &out
}

const recordVersion = 1

type envelope struct {
	Version int
	Record  *Record
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	if encMode, err = opts.EncMode(); err != nil {
		panic(err)
	}
}

// Encode serializes r with a deterministic CBOR encoding.
func Encode(r *Record) ([]byte, error) {
	data, err := encMode.Marshal(envelope{Version: recordVersion, Record: r})
	if err != nil {
		return nil, fmt.Errorf("failed to encode record %s: %w", r.Deployment, err)
	}
	return data, nil
}

// Decode parses a record written by Encode.
func Decode(data []byte) (*Record, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	if env.Version != recordVersion {
		return nil, fmt.Errorf("unsupported record version %d", env.Version)
	}
	if env.Record == nil {
		return nil, fmt.Errorf("record is empty")
	}
	if env.Record.Volumes == nil {
		env.Record.Volumes = map[string]provisioning.VolumeRef{}
	}
	if env.Record.Keys == nil {
		env.Record.Keys = map[keys.Role]keys.Ref{}
	}
	return env.Record, nil
}
