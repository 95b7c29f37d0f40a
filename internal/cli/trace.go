package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/parcelflow/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	RunID     string
	Node      string // optional - filter to one node
	ShowState bool
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run        store.Run         `json:"run"`
	Executions []store.Execution `json:"executions"`
	Parcels    []store.Parcel    `json:"parcels,omitempty"`
	Stats      TraceStats        `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Executions int `json:"executions"`
	Indexed    int `json:"indexed"`
	Failed     int `json:"failed"`
	Rounds     int `json:"rounds"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the execution log of a recorded run",
		Long: `Show the execution log of a run recorded with run --db.

The log lists every invocation in execution order with its round and the
names it produced.

Examples:
  parcelflow trace --db ./runs.db --run 0192...
  parcelflow trace --db ./runs.db --run 0192... --node process
  parcelflow trace --db ./runs.db --run 0192... --state --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Node, "node", "", "filter to one node ID")
	cmd.Flags().BoolVar(&opts.ShowState, "state", false, "include the final state")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := openExisting(opts.Database)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return f.Fail(ExitCommandError, ErrCodeRunNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
	}
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	execs, err := st.ReadExecutions(ctx, opts.RunID)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read executions", err)
	}

	result := TraceResult{Run: run, Executions: []store.Execution{}}
	for _, e := range execs {
		if opts.Node != "" && e.NodeID != opts.Node {
			continue
		}
		result.Executions = append(result.Executions, e)
		if e.HasIndex {
			result.Stats.Indexed++
		}
		if e.Error != "" {
			result.Stats.Failed++
		}
	}
	result.Stats.Executions = len(result.Executions)
	result.Stats.Rounds = run.Rounds

	if opts.ShowState {
		if result.Parcels, err = st.ReadParcels(ctx, opts.RunID); err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to read parcels", err)
		}
	}

	if f.JSON() {
		return f.Success(result)
	}
	printTrace(f, result)
	return nil
}

func printTrace(f *OutputFormatter, t TraceResult) {
	r := t.Run
	f.Printf("Run %s (%s)\n", r.ID, r.Workflow)
	f.Printf("Status: %s after %d round(s), terminal %s\n", r.Status, r.Rounds, r.Terminal)
	if r.Error != "" {
		f.Printf("Error: %s\n", r.Error)
	}
	f.Printf("Started: %s  Finished: %s\n", r.StartedAt.Format("2006-01-02T15:04:05.000Z07:00"), r.FinishedAt.Format("2006-01-02T15:04:05.000Z07:00"))
	f.Printf("Digest: %s\n", r.Digest)

	f.Printf("\nExecution log:\n")
	round := 0
	for _, e := range t.Executions {
		if e.Round != round {
			round = e.Round
			f.Printf("  round %d\n", round)
		}
		if e.Error != "" {
			f.Printf("    [%d] %s FAILED: %s\n", e.Seq, e.Label(), e.Error)
			continue
		}
		f.Printf("    [%d] %s -> %s\n", e.Seq, e.Label(), strings.Join(e.Outputs, ", "))
	}

	if t.Parcels != nil {
		f.Printf("\nFinal state:\n")
		for _, p := range t.Parcels {
			producer := p.Producer
			if producer == "" {
				producer = "initial"
			}
			f.Printf("  %s = %s (%s)\n", p.Name, renderValue(p.Value), producer)
		}
	}

	f.Printf("\n%d execution(s), %d indexed, %d failed\n", t.Stats.Executions, t.Stats.Indexed, t.Stats.Failed)
}
