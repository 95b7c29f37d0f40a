package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/parcelflow/internal/node"
)

// Issue codes reported by Check.
const (
	IssueNeverProduced     = "W301" // requirement neither in data nor produced by any node
	IssueTerminalUnreached = "W302" // terminal name neither in data nor produced by any node
	IssueCycle             = "W303" // nodes depend on each other's outputs
	IssueUnusedOutput      = "I304" // output nobody requires and not the terminal
)

// Issue is a finding of the static workflow check. Issues are warnings: a
// workflow with issues still runs, but is likely to deadlock.
type Issue struct {
	Code    string   `json:"code"`
	Level   string   `json:"level"`
	NodeID  string   `json:"node_id,omitempty"`
	Path    []string `json:"path,omitempty"`
	Message string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s", i.Code, i.Message)
}

// Check inspects the built nodes of w for requirements nothing produces and
// for dependency cycles. Names are compared by base, so a family member and
// its bare name count as the same dependency.
func Check(w *Workflow, ns []node.Node) []Issue {
	producers := make(map[string][]string)
	for _, n := range ns {
		for _, out := range n.Outputs() {
			producers[out] = append(producers[out], n.ID())
		}
	}
	available := func(name string) bool {
		_, inData := w.Data[name]
		return inData || len(producers[name]) > 0
	}

	var issues []Issue
	required := make(map[string]bool)
	for _, n := range ns {
		for _, req := range n.Requires() {
			required[req] = true
			if !available(req) {
				issues = append(issues, Issue{
					Code:    IssueNeverProduced,
					Level:   "warning",
					NodeID:  n.ID(),
					Message: fmt.Sprintf("node %s requires %s, which is never produced", n.ID(), req),
				})
			}
		}
	}

	terminalBase := w.Terminal
	if i := strings.IndexByte(terminalBase, '['); i >= 0 {
		terminalBase = terminalBase[:i]
	}
	if !available(terminalBase) {
		issues = append(issues, Issue{
			Code:    IssueTerminalUnreached,
			Level:   "warning",
			Message: fmt.Sprintf("terminal %s is never produced", w.Terminal),
		})
	}

	for _, n := range ns {
		for _, out := range n.Outputs() {
			if !required[out] && out != terminalBase && !isCountOfRequired(out, required) {
				issues = append(issues, Issue{
					Code:    IssueUnusedOutput,
					Level:   "info",
					NodeID:  n.ID(),
					Message: fmt.Sprintf("output %s of node %s is never used", out, n.ID()),
				})
			}
		}
	}

	return append(issues, analyzeCycles(ns)...)
}

func isCountOfRequired(out string, required map[string]bool) bool {
	base, ok := strings.CutSuffix(out, "_count")
	return ok && required[base]
}

// dependencyGraph maps node ID → IDs of nodes that consume its outputs.
type dependencyGraph map[string][]string

func buildDependencyGraph(ns []node.Node) dependencyGraph {
	consumers := make(map[string][]string)
	for _, n := range ns {
		for _, req := range n.Requires() {
			consumers[req] = append(consumers[req], n.ID())
		}
	}

	graph := make(dependencyGraph, len(ns))
	for _, n := range ns {
		graph[n.ID()] = []string{}
		for _, out := range n.Outputs() {
			graph[n.ID()] = append(graph[n.ID()], consumers[out]...)
		}
	}
	return graph
}

// analyzeCycles reports every strongly connected component of the
// dependency graph with more than one node, and every self-loop. Nodes in a
// cycle can only run if the initial data breaks it.
func analyzeCycles(ns []node.Node) []Issue {
	graph := buildDependencyGraph(ns)
	order := make([]string, len(ns))
	for i, n := range ns {
		order[i] = n.ID()
	}

	var issues []Issue
	for _, scc := range tarjanSCC(graph, order) {
		if len(scc) == 1 && !hasSelfLoop(scc[0], graph) {
			continue
		}
		sort.Strings(scc)
		path := append(append([]string{}, scc...), scc[0])
		issues = append(issues, Issue{
			Code:    IssueCycle,
			Level:   "warning",
			Path:    path,
			Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " → ")),
		})
	}
	return issues
}

func hasSelfLoop(id string, graph dependencyGraph) bool {
	for _, next := range graph[id] {
		if next == id {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components, visiting roots in order so
// the result is deterministic.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
	var (
		index   int
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, v := range order {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}
	return sccs
}
