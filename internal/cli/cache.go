package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/verity/internal/ir"
	"github.com/roach88/verity/internal/store"
)

// cacheBackend is implemented by the persistent metric stores.
type cacheBackend interface {
	store.MetricStore
	store.Lister
	Purge(ctx context.Context, dataset ir.DatasetID) (int64, error)
}

// CacheOptions holds flags for the cache commands.
type CacheOptions struct {
	*RootOptions
	Store   StoreOptions
	Dataset string
}

// CacheEntry is one stored metric.
type CacheEntry struct {
	Dataset       string `json:"dataset"`
	Metric        string `json:"metric"`
	Value         string `json:"value"`
	EngineVersion string `json:"engine_version"`
	ComputedAt    string `json:"computed_at"`
}

// CacheListReport is the result of cache list.
type CacheListReport struct {
	Entries []CacheEntry `json:"entries"`
}

// CachePurgeReport is the result of cache purge.
type CachePurgeReport struct {
	Dataset string `json:"dataset"`
	Removed int64  `json:"removed"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and purge a metric store",
	}
	cmd.AddCommand(newCacheListCommand(rootOpts))
	cmd.AddCommand(newCachePurgeCommand(rootOpts))
	return cmd
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored metrics",
		Long: `List the metrics of a persistent store, optionally of one dataset.

Example:
  verity cache list --cache metrics.db
  verity cache list --badger ./metrics --dataset orders`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(opts, cmd)
		},
	}
	addStoreFlags(cmd, &opts.Store)
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "only list metrics of this dataset")
	return cmd
}

func newCachePurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "purge",
		Short:         "Remove every stored metric of a dataset",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCachePurge(opts, cmd)
		},
	}
	addStoreFlags(cmd, &opts.Store)
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset to purge (required)")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

// openCache opens the persistent store selected by opts. The caller must
// call the returned close func.
func openCache(opts *CacheOptions, cmd *cobra.Command, f *OutputFormatter) (cacheBackend, func(), error) {
	if opts.Store.Cache == "" && opts.Store.Badger == "" {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeArgs, "one of --cache or --badger is required", nil)
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	st, closeStore, err := openStore(&opts.Store, opts.Verbose, logger)
	if err != nil {
		_ = f.Error(ErrCodeStore, err.Error(), nil)
		return nil, nil, err
	}
	closeFn := func() {
		if err := closeStore(); err != nil {
			logger.Error("error closing metric store", "error", err)
		}
	}
	backend, ok := st.(cacheBackend)
	if !ok {
		closeFn()
		return nil, nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("store %T cannot be listed", st), nil)
	}
	return backend, closeFn, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runCacheList(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	backend, closeFn, err := openCache(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer closeFn()

	entries, err := backend.List(commandContext(cmd), ir.DatasetID(opts.Dataset))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list metrics", err)
	}

	report := &CacheListReport{Entries: make([]CacheEntry, len(entries))}
	for i, e := range entries {
		report.Entries[i] = CacheEntry{
			Dataset:       string(e.Dataset),
			Metric:        e.Value.Request.String(),
			Value:         e.Value.String(),
			EngineVersion: e.EngineVersion,
			ComputedAt:    e.ComputedAt.UTC().Format(time.RFC3339),
		}
	}
	return formatter.Success(report)
}

func (r *CacheListReport) WriteText(w io.Writer) error {
	if len(r.Entries) == 0 {
		_, err := fmt.Fprintln(w, "No cached metrics")
		return err
	}
	var b strings.Builder
	for _, e := range r.Entries {
		fmt.Fprintf(&b, "%s  %s = %s  (%s, engine %s)\n", e.Dataset, e.Metric, e.Value, e.ComputedAt, e.EngineVersion)
	}
	fmt.Fprintf(&b, "\n%d metric(s)\n", len(r.Entries))
	_, err := io.WriteString(w, b.String())
	return err
}

func runCachePurge(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	backend, closeFn, err := openCache(opts, cmd, formatter)
	if err != nil {
		return err
	}
	defer closeFn()

	n, err := backend.Purge(commandContext(cmd), ir.DatasetID(opts.Dataset))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to purge metrics", err)
	}
	return formatter.Success(&CachePurgeReport{Dataset: opts.Dataset, Removed: n})
}

func (r *CachePurgeReport) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Removed %d metric(s) of dataset %s\n", r.Removed, r.Dataset)
	return err
}
