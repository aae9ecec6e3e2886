package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/imamik/svmzner/internal/orchestration"
)

// StatusOptions configure the status command.
type StatusOptions struct {
	GlobalOptions
	// Live also queries the validator service on the host.
	Live bool
	JSON bool
}

// statusView is the JSON rendering of a deployment status.
type statusView struct {
	Deployment         string       `json:"deployment"`
	Stage              string       `json:"stage"`
	PublicAddress      string       `json:"public_address,omitempty"`
	GenesisFingerprint string       `json:"genesis_fingerprint,omitempty"`
	ValidatorDigest    string       `json:"validator_digest,omitempty"`
	LaunchStatus       string       `json:"launch_status,omitempty"`
	UpdatedAt          time.Time    `json:"updated_at"`
	Failure            *failureView `json:"failure,omitempty"`
	Warnings           []string     `json:"warnings,omitempty"`
	Service            *serviceView `json:"service,omitempty"`
}

type failureView struct {
	Stage string    `json:"stage"`
	Node  string    `json:"node"`
	Cause string    `json:"cause"`
	At    time.Time `json:"at"`
}

type serviceView struct {
	Active  string `json:"active"`
	Drifted bool   `json:"drifted"`
}

// Status prints the recorded state of the deployment.
func Status(ctx context.Context, opts StatusOptions) error {
	s, err := openSession(ctx, opts.GlobalOptions, false)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	st, err := s.reconciler.Status(ctx, opts.Live)
	if err != nil {
		return err
	}
	view := toStatusView(st)

	if opts.JSON {
		b, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		fmt.Fprintln(stdout, string(b))
		return nil
	}
	printStatus(view)
	return nil
}

func toStatusView(st *orchestration.Status) statusView {
	v := statusView{
		Deployment:         st.Deployment,
		Stage:              string(st.Stage),
		PublicAddress:      st.PublicAddress,
		GenesisFingerprint: st.GenesisFingerprint,
		ValidatorDigest:    st.ValidatorDigest,
		LaunchStatus:       st.LaunchStatus,
		UpdatedAt:          st.UpdatedAt,
		Warnings:           st.Warnings,
	}
	if f := st.Failure; f != nil {
		v.Failure = &failureView{Stage: string(f.Stage), Node: f.Node, Cause: f.Cause, At: f.At}
	}
	if st.Service != nil {
		v.Service = &serviceView{Active: st.Service.Active, Drifted: st.Drifted}
	}
	return v
}

func printStatus(v statusView) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Deployment:\t%s\n", v.Deployment)
	fmt.Fprintf(w, "Stage:\t%s\n", v.Stage)
	if v.PublicAddress != "" {
		fmt.Fprintf(w, "Public address:\t%s\n", v.PublicAddress)
	}
	if v.GenesisFingerprint != "" {
		fmt.Fprintf(w, "Genesis fingerprint:\t%s\n", v.GenesisFingerprint)
	}
	if v.LaunchStatus != "" {
		fmt.Fprintf(w, "Validator:\t%s\n", v.LaunchStatus)
	}
	if !v.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated:\t%s\n", v.UpdatedAt.Format(time.RFC3339))
	}
	if f := v.Failure; f != nil {
		fmt.Fprintf(w, "Failed step:\t%s (stage %s)\n", f.Node, f.Stage)
		fmt.Fprintf(w, "Cause:\t%s\n", f.Cause)
	}
	for _, warning := range v.Warnings {
		fmt.Fprintf(w, "Warning:\t%s\n", warning)
	}
	if svc := v.Service; svc != nil {
		fmt.Fprintf(w, "Service:\t%s\n", svc.Active)
		if svc.Drifted {
			fmt.Fprintf(w, "Drift:\trunning configuration differs from the recorded one; run apply\n")
		}
	}
	_ = w.Flush()
}
