package cli

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/verity/internal/analysis"
	"github.com/roach88/verity/internal/check"
	"github.com/roach88/verity/internal/suite"
)

// RunOptions holds the flags shared by commands that resolve a suite's
// metrics against a dataset.
type RunOptions struct {
	*RootOptions
	Source      SourceOptions
	Suite       string
	MetricsFile string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs analysis.RunIDGenerator
}

func addRunFlags(cmd *cobra.Command, o *RunOptions) {
	addSourceFlags(cmd, &o.Source)
	cmd.Flags().StringVar(&o.Suite, "suite", "", "suite file (.yaml, .yml or .cue) (required)")
	cmd.Flags().StringVar(&o.MetricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	_ = cmd.MarkFlagRequired("suite")
}

// analysisRun is a suite resolved against one dataset.
type analysisRun struct {
	suite   *suite.Suite
	checks  []*check.Check
	context *analysis.Context
}

// analyze loads the suite, opens the dataset and store, and resolves every
// metric the suite needs in one run. Errors have already been reported
// through f.
func (o *RunOptions) analyze(cmd *cobra.Command, f *OutputFormatter) (*analysisRun, error) {
	logger := newLogger(o.RootOptions, cmd.ErrOrStderr())

	s, err := suite.Load(o.Suite)
	if err != nil {
		return nil, f.Fail(ExitCommandError, suite.CodeOf(err), "failed to load suite", err)
	}
	checks, err := s.Build()
	if err != nil {
		return nil, f.Fail(ExitCommandError, suite.CodeOf(err), "failed to build suite", err)
	}
	f.VerboseLog("Loaded suite %q: %d check(s)", s.Name, len(checks))

	ctx := commandContext(cmd)

	sess, err := openSession(ctx, &o.Source, o.Verbose, logger)
	if err != nil {
		_ = f.Error(sessionErrorCode(err), err.Error(), nil)
		return nil, err
	}
	defer sess.Close(logger)

	reg := prometheus.NewRegistry()
	runOpts := []analysis.Option{
		analysis.WithLogger(logger),
		analysis.WithMetrics(analysis.NewMetrics(reg)),
	}
	if o.RunIDs != nil {
		runOpts = append(runOpts, analysis.WithRunIDs(o.RunIDs))
	}
	runner := analysis.NewRunner(sess.engine, sess.store, runOpts...)

	requirers := make([]analysis.Requirer, len(checks))
	for i, c := range checks {
		requirers[i] = c
	}
	actx, err := runner.Run(ctx, sess.dataset, analysis.RequiredRequests(requirers...))

	if o.MetricsFile != "" {
		if werr := prometheus.WriteToTextfile(o.MetricsFile, reg); werr != nil {
			logger.Warn("failed to write metrics file", "path", o.MetricsFile, "error", werr)
		}
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, engineErrorCode(err), "analysis failed", err)
	}
	return &analysisRun{suite: s, checks: checks, context: actx}, nil
}

// sessionErrorCode tells flag problems apart from data and store failures.
func sessionErrorCode(err error) string {
	var ee *ExitError
	if errors.As(err, &ee) && ee.Err == nil {
		return ErrCodeArgs
	}
	return ErrCodeData
}
