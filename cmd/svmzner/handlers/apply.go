package handlers

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/imamik/svmzner/internal/orchestration"
	"github.com/imamik/svmzner/internal/state"
)

// ApplyOptions configure the apply command.
type ApplyOptions struct {
	GlobalOptions
	// MetricsFile receives the run metrics in the Prometheus text format.
	MetricsFile string
}

// Apply provisions the deployment, or resumes it where the last run stopped.
//
// This function runs the complete workflow:
//  1. Loads and validates the configuration
//  2. Opens the state backend and the sealed secret store
//  3. Reconciles cloud resources, role keys, genesis and the validator
//  4. Writes the run metrics when --metrics-file is set, also on failure
//
// On failure every created resource is kept and the error names the stage
// and step that failed; running apply again resumes.
func Apply(ctx context.Context, opts ApplyOptions) error {
	s, err := openSession(ctx, opts.GlobalOptions, true)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	s.observer.Printf("Applying deployment %s", s.cfg.Deployment)
	result, runErr := s.reconciler.Reconcile(ctx)

	if opts.MetricsFile != "" {
		if err := s.reconciler.Metrics().WriteToTextfile(opts.MetricsFile); err != nil {
			s.observer.Printf("Warning: failed to write metrics to %s: %v", opts.MetricsFile, err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("apply failed: %w", runErr)
	}

	printApplySummary(result)
	return nil
}

func printApplySummary(result *orchestration.Result) {
	rec := result.Record
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Deployment:\t%s\n", rec.Deployment)
	fmt.Fprintf(w, "Stage:\t%s\n", rec.Stage)
	if result.Resumed != state.StageInit {
		fmt.Fprintf(w, "Resumed from:\t%s\n", result.Resumed)
	}
	if rec.Instance != nil {
		fmt.Fprintf(w, "Public address:\t%s\n", rec.Instance.PublicAddress)
	}
	fmt.Fprintf(w, "Genesis fingerprint:\t%s\n", rec.GenesisFingerprint)
	fmt.Fprintf(w, "Validator:\t%s\n", rec.LaunchStatus)
	for _, warning := range rec.Warnings {
		fmt.Fprintf(w, "Warning:\t%s\n", warning)
	}
	_ = w.Flush()
}
