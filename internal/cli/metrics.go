package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// MetricsReport lists every metric resolved for a suite.
type MetricsReport struct {
	Dataset string         `json:"dataset"`
	RunID   string         `json:"run_id"`
	Metrics []MetricReport `json:"metrics"`
	Stats   RunStats       `json:"stats"`
}

// MetricReport is one resolved metric. Value is empty when Type is "none".
type MetricReport struct {
	Metric string `json:"metric"`
	Type   string `json:"type"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	return newMetricsCommand(&RunOptions{RootOptions: rootOpts})
}

func newMetricsCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute and print the metrics a suite needs",
		Long: `Compute and print every metric a suite needs, without evaluating checks.

Example:
  verity metrics --data orders.csv --suite orders.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetrics(opts, cmd)
		},
	}

	addRunFlags(cmd, opts)

	return cmd
}

func runMetrics(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	run, err := opts.analyze(cmd, formatter)
	if err != nil {
		return err
	}

	stats := run.context.Stats()
	report := &MetricsReport{
		Dataset: string(run.context.Dataset()),
		RunID:   run.context.RunID(),
		Metrics: []MetricReport{},
		Stats:   RunStats{Requested: stats.Requested, Cached: stats.Cached, Computed: stats.Computed},
	}
	for _, v := range run.context.Values() {
		m := MetricReport{Metric: v.Request.String(), Type: string(v.Type), Reason: v.Reason}
		if !v.IsNone() {
			m.Value = v.String()
		}
		report.Metrics = append(report.Metrics, m)
	}
	return formatter.Success(report)
}

func (r *MetricsReport) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n", r.Dataset)
	fmt.Fprintf(&b, "Run:     %s\n\n", r.RunID)
	for _, m := range r.Metrics {
		if m.Type == "none" {
			fmt.Fprintf(&b, "%s = <none: %s>\n", m.Metric, m.Reason)
			continue
		}
		fmt.Fprintf(&b, "%s = %s\n", m.Metric, m.Value)
	}
	fmt.Fprintf(&b, "\n%d metric(s): %d cached, %d computed\n", r.Stats.Requested, r.Stats.Cached, r.Stats.Computed)
	_, err := io.WriteString(w, b.String())
	return err
}
