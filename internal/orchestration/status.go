package orchestration

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/svmzner/internal/provisioning/validator"
	"github.com/imamik/svmzner/internal/remote"
	"github.com/imamik/svmzner/internal/secret"
	"github.com/imamik/svmzner/internal/state"
)

// Status is the recorded state of a deployment, optionally with the live
// service state.
type Status struct {
	Deployment         string
	Stage              state.Stage
	Failure            *state.Failure
	Warnings           []string
	PublicAddress      string
	GenesisFingerprint string
	ValidatorDigest    string
	LaunchStatus       string
	UpdatedAt          time.Time

	// Service is set when the host was queried.
	Service *validator.ServiceState
	// Drifted reports that the running configuration differs from the
	// recorded one.
	Drifted bool
}

// Status reads the record. With live set it also asks the host which
// configuration the validator runs with.
func (r *Reconciler) Status(ctx context.Context, live bool) (*Status, error) {
	rec, err := r.store.Load(ctx, r.cfg.Deployment)
	if err != nil {
		return nil, fmt.Errorf("failed to load state of %s: %w", r.cfg.Deployment, err)
	}

	st := &Status{
		Deployment:         rec.Deployment,
		Stage:              rec.Stage,
		Failure:            rec.Failure,
		Warnings:           rec.Warnings,
		GenesisFingerprint: rec.GenesisFingerprint,
		ValidatorDigest:    rec.ValidatorDigest,
		LaunchStatus:       rec.LaunchStatus,
		UpdatedAt:          rec.UpdatedAt,
	}
	if rec.Instance != nil {
		st.PublicAddress = rec.Instance.PublicAddress
	}
	if !live || rec.Instance == nil {
		return st, nil
	}

	conn, err := r.descriptor(ctx, rec)
	if err != nil {
		return nil, err
	}
	svc, err := r.launcher.Status(ctx, conn)
	if err != nil {
		return nil, err
	}
	st.Service = &svc
	st.Drifted = rec.ValidatorDigest != "" && svc.ConfigDigest != rec.ValidatorDigest
	return st, nil
}

// Outputs are the values an operator needs to reach the host.
type Outputs struct {
	PublicAddress string
	SSHUser       string
	SSHPort       int
	// SSHPrivateKey prints as [REDACTED] unless revealed.
	SSHPrivateKey secret.Value
}

// Outputs returns the deployment outputs.
func (r *Reconciler) Outputs(ctx context.Context) (*Outputs, error) {
	rec, err := r.store.Load(ctx, r.cfg.Deployment)
	if err != nil {
		return nil, fmt.Errorf("failed to load state of %s: %w", r.cfg.Deployment, err)
	}
	if rec.Instance == nil || rec.Instance.PublicAddress == "" {
		return nil, fmt.Errorf("deployment %s has no reachable server yet", r.cfg.Deployment)
	}
	key, err := r.secrets.Get(ctx, rec.SSHPrivateKeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ssh private key: %w", err)
	}
	return &Outputs{
		PublicAddress: rec.Instance.PublicAddress,
		SSHUser:       r.cfg.SSH.User,
		SSHPort:       r.cfg.SSH.Port,
		SSHPrivateKey: key,
	}, nil
}

func (r *Reconciler) descriptor(ctx context.Context, rec *state.Record) (remote.Descriptor, error) {
	key, err := r.secrets.Get(ctx, rec.SSHPrivateKeyID)
	if err != nil {
		return remote.Descriptor{}, fmt.Errorf("failed to load ssh private key: %w", err)
	}
	return remote.Build(rec.Instance, key, r.cfg.SSH.User, r.cfg.SSH.Port)
}
