package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/parcelflow/internal/catalog"
	"github.com/roach88/parcelflow/internal/nodes"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat warnings as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                 `json:"valid"`
	Workflows []WorkflowValidation `json:"workflows"`
}

// WorkflowValidation is the outcome for one workflow.
type WorkflowValidation struct {
	Name   string          `json:"name"`
	Errors []string        `json:"errors,omitempty"`
	Issues []catalog.Issue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [workflows-dir]",
		Short: "Validate workflow definitions without running them",
		Long: `Validate CUE workflow definitions without running them.

Checks the definitions against the schema, builds every node from its kind,
and reports requirements nothing produces, unreachable terminals and
dependency cycles. Without a directory the built-in workflows are checked.

Warnings do not make a workflow invalid unless --strict is set.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(opts, dir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var (
		cat *catalog.Catalog
		err error
	)
	if dir == "" {
		cat, err = catalog.LoadBuiltin()
	} else {
		if _, statErr := os.Stat(dir); os.IsNotExist(statErr) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workflows directory not found: %s", dir), nil)
		}
		f.VerboseLog("Loading workflows from %s", dir)
		cat, err = catalog.LoadDir(dir)
	}
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeLoadFailed, "invalid workflow definitions", err)
	}

	result := ValidationResult{Valid: true, Workflows: []WorkflowValidation{}}
	reg := nodes.Default()
	for _, wf := range cat.List() {
		v := WorkflowValidation{Name: wf.Name}
		ns, err := wf.Build(reg)
		if err != nil {
			v.Errors = append(v.Errors, err.Error())
		} else {
			v.Issues = catalog.Check(wf, ns)
		}

		if len(v.Errors) > 0 {
			result.Valid = false
		}
		if opts.Strict {
			for _, issue := range v.Issues {
				if issue.Level == "warning" {
					result.Valid = false
				}
			}
		}
		result.Workflows = append(result.Workflows, v)
	}

	if f.JSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		printValidation(f, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	for _, v := range result.Workflows {
		mark := "✓"
		if len(v.Errors) > 0 {
			mark = "✗"
		}
		f.Printf("%s %s\n", mark, v.Name)
		for _, e := range v.Errors {
			f.Printf("  error: %s\n", e)
		}
		for _, issue := range v.Issues {
			f.Printf("  %s: %s\n", issue.Level, issue)
		}
	}
	if result.Valid {
		f.Printf("All %d workflow(s) valid.\n", len(result.Workflows))
	} else {
		f.Printf("Validation failed.\n")
	}
}
