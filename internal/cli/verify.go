package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/verity/internal/check"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	RunOptions
	Strict bool
}

// VerifyReport is the result of the verify command.
type VerifyReport struct {
	Suite   string        `json:"suite,omitempty"`
	Dataset string        `json:"dataset"`
	RunID   string        `json:"run_id"`
	Status  string        `json:"status"`
	Checks  []CheckReport `json:"checks"`
	Metrics RunStats      `json:"metrics"`
}

// CheckReport is the result of one check.
type CheckReport struct {
	Description string             `json:"description"`
	Level       string             `json:"level"`
	Status      string             `json:"status"`
	Constraints []ConstraintReport `json:"constraints"`
}

// ConstraintReport is the result of one constraint.
type ConstraintReport struct {
	Constraint string `json:"constraint"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Message    string `json:"message,omitempty"`
}

// RunStats counts how the run's metrics were resolved.
type RunStats struct {
	Requested int `json:"requested"`
	Cached    int `json:"cached"`
	Computed  int `json:"computed"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return newVerifyCommand(&VerifyOptions{RunOptions: RunOptions{RootOptions: rootOpts}})
}

func newVerifyCommand(opts *VerifyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a dataset against a suite of checks",
		Long: `Verify a dataset against a suite of checks.

Every metric the suite needs is resolved in one analysis run, from the
metric store when cached, otherwise from the dataset. The exit code is 1
when any check has status Error (or Warning with --strict).

Example:
  verity verify --data orders.csv --suite orders.yaml
  verity verify --data orders.csv --suite orders.cue --cache metrics.db
  verity verify --dsn postgres://localhost/shop --table orders --suite orders.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	addRunFlags(cmd, &opts.RunOptions)
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as failures")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	run, err := opts.analyze(cmd, formatter)
	if err != nil {
		return err
	}

	results := make([]check.Result, len(run.checks))
	for i, c := range run.checks {
		results[i] = c.Evaluate(run.context)
	}
	report := newVerifyReport(run, results)
	if err := formatter.Success(report); err != nil {
		return err
	}

	status := check.OverallStatus(results...)
	if status == check.StatusError || (opts.Strict && status == check.StatusWarning) {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: verification finished with status %s", ErrCodeVerified, status))
	}
	return nil
}

func newVerifyReport(run *analysisRun, results []check.Result) *VerifyReport {
	stats := run.context.Stats()
	report := &VerifyReport{
		Suite:   run.suite.Name,
		Dataset: string(run.context.Dataset()),
		RunID:   run.context.RunID(),
		Status:  string(check.OverallStatus(results...)),
		Checks:  make([]CheckReport, len(results)),
		Metrics: RunStats{Requested: stats.Requested, Cached: stats.Cached, Computed: stats.Computed},
	}
	for i, res := range results {
		cr := CheckReport{
			Description: res.Description,
			Level:       res.Level.String(),
			Status:      string(res.Status),
			Constraints: make([]ConstraintReport, len(res.Constraints)),
		}
		for j, c := range res.Constraints {
			cr.Constraints[j] = ConstraintReport{
				Constraint: c.Constraint,
				Status:     string(c.Status),
				Reason:     string(c.Reason),
				Message:    c.Message,
			}
		}
		report.Checks[i] = cr
	}
	return report
}

func statusMark(status string) string {
	switch check.Status(status) {
	case check.StatusSuccess:
		return "✓"
	case check.StatusWarning:
		return "!"
	}
	return "✗"
}

// WriteText renders the report for terminals. Only failed constraints are
// listed.
func (r *VerifyReport) WriteText(w io.Writer) error {
	var b strings.Builder
	if r.Suite != "" {
		fmt.Fprintf(&b, "Suite:   %s\n", r.Suite)
	}
	fmt.Fprintf(&b, "Dataset: %s\n", r.Dataset)
	fmt.Fprintf(&b, "Run:     %s\n\n", r.RunID)

	for _, c := range r.Checks {
		fmt.Fprintf(&b, "%s %s [%s]: %s\n", statusMark(c.Status), c.Description, c.Level, c.Status)
		for _, cr := range c.Constraints {
			if cr.Status == string(check.ConstraintSuccess) {
				continue
			}
			fmt.Fprintf(&b, "    %s\n      %s\n", cr.Constraint, cr.Message)
		}
	}

	fmt.Fprintf(&b, "\nStatus: %s\n", r.Status)
	fmt.Fprintf(&b, "Metrics: %d requested, %d cached, %d computed\n",
		r.Metrics.Requested, r.Metrics.Cached, r.Metrics.Computed)
	_, err := io.WriteString(w, b.String())
	return err
}
