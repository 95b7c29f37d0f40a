package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/parcelflow/internal/nodes"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Dir   string
	Kinds bool // list node kinds instead of workflows
}

// KindSummary describes one registered node kind.
type KindSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []string `json:"params"`
}

// WorkflowSummary describes one catalog entry.
type WorkflowSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Terminal    string   `json:"terminal"`
	Nodes       []string `json:"nodes"`
	Data        []string `json:"data"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available workflows",
		Long: `List the built-in workflows and any defined in --dir, or with --kinds the
node kinds workflow definitions can use.

Examples:
  parcelflow list
  parcelflow list --dir ./workflows --format json
  parcelflow list --kinds`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory of additional CUE workflow definitions")
	cmd.Flags().BoolVar(&opts.Kinds, "kinds", false, "list node kinds")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Kinds {
		return listKinds(f)
	}

	cat, err := loadCatalog(opts.Dir)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to load workflows", err)
	}

	summaries := make([]WorkflowSummary, 0, cat.Len())
	for _, wf := range cat.List() {
		s := WorkflowSummary{
			Name:        wf.Name,
			Description: wf.Description,
			Terminal:    wf.Terminal,
			Nodes:       make([]string, len(wf.Nodes)),
			Data:        sortedKeys(wf.Data),
		}
		for i, n := range wf.Nodes {
			s.Nodes[i] = n.ID + ":" + n.Kind
		}
		summaries = append(summaries, s)
	}

	if f.JSON() {
		return f.Success(summaries)
	}
	for _, s := range summaries {
		f.Printf("%-12s %s\n", s.Name, s.Description)
		f.Printf("%-12s terminal=%s nodes=%d\n", "", s.Terminal, len(s.Nodes))
		f.VerboseLog("%s: %v", s.Name, s.Nodes)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listKinds(f *OutputFormatter) error {
	kinds := nodes.Default().Kinds()
	out := make([]KindSummary, len(kinds))
	for i, k := range kinds {
		out[i] = KindSummary{Name: k.Name, Description: k.Description, Params: k.Params}
	}

	if f.JSON() {
		return f.Success(out)
	}
	for _, k := range out {
		f.Printf("%-10s %s\n", k.Name, k.Description)
		f.Printf("%-10s params: %s\n", "", strings.Join(k.Params, ", "))
	}
	return nil
}
