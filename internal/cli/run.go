package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/parcelflow/internal/catalog"
	"github.com/roach88/parcelflow/internal/engine"
	"github.com/roach88/parcelflow/internal/nodes"
	"github.com/roach88/parcelflow/internal/parcel"
	"github.com/roach88/parcelflow/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Dir       string
	DataFile  string
	Terminal  string
	MaxRounds int
	Timeout   time.Duration
	Strict    bool
	Database  string
	ShowState bool

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunOutput is the report of one workflow run.
type RunOutput struct {
	Workflow      string            `json:"workflow"`
	RunID         string            `json:"run_id"`
	Status        string            `json:"status"`
	Rounds        int               `json:"rounds"`
	Terminal      string            `json:"terminal"`
	TerminalValue any               `json:"terminal_value,omitempty"`
	Missing       []string          `json:"missing,omitempty"`
	Error         string            `json:"error,omitempty"`
	Conflicts     []engine.Conflict `json:"conflicts,omitempty"`
	Executions    []ExecutionOutput `json:"executions"`
	State         map[string]any    `json:"state,omitempty"`
}

// ExecutionOutput is one execution log line.
type ExecutionOutput struct {
	Seq        int64    `json:"seq"`
	Round      int      `json:"round"`
	Invocation string   `json:"invocation"`
	Outputs    []string `json:"outputs"`
	DurationMS float64  `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <workflow|all>",
		Short: "Run a workflow",
		Long: `Run a workflow from the catalog until its terminal name is bound.

The catalog holds the built-in workflows plus any defined in --dir. "all"
runs every workflow in name order.

Exit codes:
  0 - Every run succeeded
  1 - A run deadlocked or failed
  2 - Command error (unknown workflow, bad flags, database error)

Examples:
  parcelflow run simple
  parcelflow run array --data users.yaml --show-state
  parcelflow run my_flow --dir ./workflows --db ./runs.db
  parcelflow run all --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflows(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of additional CUE workflow definitions")
	cmd.Flags().StringVar(&opts.DataFile, "data", "", "YAML or JSON file overriding initial data")
	cmd.Flags().StringVar(&opts.Terminal, "terminal", "", "override the workflow's terminal name")
	cmd.Flags().IntVar(&opts.MaxRounds, "max-rounds", engine.DefaultMaxRounds, "round budget per run")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-invocation timeout (0 disables)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail the run on output conflicts")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().BoolVar(&opts.ShowState, "show-state", false, "print the final state")

	return cmd
}

func runWorkflows(opts *RunOptions, target string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.MaxRounds <= 0 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--max-rounds must be positive", nil)
	}
	if target == "all" && (opts.DataFile != "" || opts.Terminal != "") {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--data and --terminal need a single workflow", nil)
	}

	cat, err := loadCatalog(opts.Dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load workflows", err)
	}
	data, err := loadData(opts.DataFile)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidData, "invalid data", err)
	}

	var workflows []*catalog.Workflow
	if target == "all" {
		workflows = cat.List()
	} else {
		wf, ok := cat.Get(target)
		if !ok {
			return f.Fail(ExitCommandError, ErrCodeUnknownWorkflow,
				fmt.Sprintf("unknown workflow %q (available: %s)", target, strings.Join(cat.Names(), ", ")), nil)
		}
		workflows = []*catalog.Workflow{wf}
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(
		engine.WithMaxRounds(opts.MaxRounds),
		engine.WithInvocationTimeout(opts.Timeout),
		engine.WithStrictOutputs(opts.Strict),
		engine.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())),
		engine.WithRunIDGenerator(opts.RunIDs),
	)

	reports := make([]RunOutput, 0, len(workflows))
	failed := 0
	for _, wf := range workflows {
		report, err := runOne(ctx, f, eng, wf, data, opts, st)
		if err != nil {
			return err
		}
		if report.Status != string(engine.StatusSucceeded) {
			failed++
		}
		reports = append(reports, report)
		if !f.JSON() {
			printRun(f, report, opts)
		}
	}

	if f.JSON() {
		var payload any = reports
		if target != "all" {
			payload = reports[0]
		}
		if err := f.Success(payload); err != nil {
			return err
		}
	} else if target == "all" {
		f.Printf("\n%d/%d workflows succeeded\n", len(reports)-failed, len(reports))
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d runs did not succeed", failed, len(reports)))
	}
	return nil
}

func runOne(
	ctx context.Context,
	f *OutputFormatter,
	eng *engine.Engine,
	wf *catalog.Workflow,
	data map[string]any,
	opts *RunOptions,
	st *store.Store,
) (RunOutput, error) {
	ns, err := wf.Build(nodes.Default())
	if err != nil {
		return RunOutput{}, f.Fail(ExitCommandError, ErrCodeInvalidWorkflow, "failed to build workflow "+wf.Name, err)
	}
	terminal := wf.Terminal
	if opts.Terminal != "" {
		terminal = opts.Terminal
	}

	res, err := eng.Execute(ctx, ns, wf.InitialData(data), terminal)
	if err != nil {
		return RunOutput{}, f.Fail(ExitCommandError, ErrCodeInvalidWorkflow, "workflow "+wf.Name+" rejected", err)
	}

	if st != nil {
		// A run cut short by Ctrl-C is still recorded.
		if _, err := st.WriteResult(context.WithoutCancel(ctx), wf.Name, res); err != nil {
			return RunOutput{}, f.Fail(ExitCommandError, ErrCodeStore, "failed to record run", err)
		}
	}

	report := RunOutput{
		Workflow:   wf.Name,
		RunID:      res.RunID,
		Status:     string(res.Status),
		Rounds:     res.RoundsExecuted,
		Terminal:   res.Terminal,
		Conflicts:  res.Conflicts,
		Executions: make([]ExecutionOutput, len(res.ExecutionLog)),
	}
	if v, ok := res.TerminalValue(); ok {
		report.TerminalValue = v
	}
	if res.Status == engine.StatusDeadlocked {
		report.Missing = res.Missing(ns)
	}
	if res.Err != nil {
		report.Error = res.Err.Error()
	}
	if opts.ShowState {
		report.State = res.FinalState
	}
	for i, e := range res.ExecutionLog {
		report.Executions[i] = ExecutionOutput{
			Seq:        e.Seq,
			Round:      e.Round,
			Invocation: e.Label(),
			Outputs:    e.Outputs,
			DurationMS: float64(e.Duration) / float64(time.Millisecond),
			Error:      e.Err,
		}
	}
	return report, nil
}

func printRun(f *OutputFormatter, r RunOutput, opts *RunOptions) {
	f.Printf("Workflow: %s (run %s)\n", r.Workflow, r.RunID)
	f.Printf("Status: %s after %d round(s)\n", r.Status, r.Rounds)
	if r.TerminalValue != nil {
		f.Printf("Terminal %s = %s\n", r.Terminal, renderValue(r.TerminalValue))
	}
	if len(r.Missing) > 0 {
		f.Printf("Waiting for: %s\n", strings.Join(r.Missing, ", "))
	}
	if r.Error != "" {
		f.Printf("Error: %s\n", r.Error)
	}
	for _, c := range r.Conflicts {
		winner := c.Winner
		if winner == "" {
			winner = "initial data"
		}
		f.Printf("Conflict: %s from %s in round %d ignored (held by %s)\n", c.Name, c.NodeID, c.Round, winner)
	}

	f.Printf("Execution log:\n")
	for _, e := range r.Executions {
		line := fmt.Sprintf("  [%d] round %d %s", e.Seq, e.Round, e.Invocation)
		if e.Error != "" {
			line += " FAILED: " + e.Error
		} else {
			line += " -> " + strings.Join(e.Outputs, ", ")
		}
		if opts.Verbose {
			line += fmt.Sprintf(" (%.3fms)", e.DurationMS)
		}
		f.Printf("%s\n", line)
	}

	if r.State != nil {
		f.Printf("Final state:\n")
		names := make([]string, 0, len(r.State))
		for name := range r.State {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			f.Printf("  %s = %s\n", name, renderValue(r.State[name]))
		}
	}
}

// renderValue prints a value as canonical JSON, falling back to %v.
func renderValue(v any) string {
	data, err := parcel.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
