package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/parcelflow/internal/engine"
	"github.com/roach88/parcelflow/internal/parcel"
)

// Scenario defines a workflow conformance test.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Workflow is the catalog name of the workflow to run.
	Workflow string `yaml:"workflow"`

	// Data overrides entries of the workflow's initial data.
	Data map[string]any `yaml:"data,omitempty"`

	// Terminal overrides the workflow's terminal name.
	Terminal string `yaml:"terminal,omitempty"`

	// MaxRounds overrides the engine's round budget when positive.
	MaxRounds int `yaml:"max_rounds,omitempty"`

	// RunID is a fixed run ID for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// ExpectStatus is the expected run status. Defaults to SUCCEEDED.
	ExpectStatus string `yaml:"expect_status,omitempty"`

	// Assertions validate the finished run.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of a finished run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Name is the parcel name (parcel_equals, parcel_absent).
	Name string `yaml:"name,omitempty"`

	// Value is the expected value (parcel_equals).
	Value any `yaml:"value,omitempty"`

	// Node is the node ID (exec_count).
	Node string `yaml:"node,omitempty"`

	// Count is the expected number (exec_count, rounds).
	Count int `yaml:"count,omitempty"`

	// Invocations is the expected order (exec_order).
	Invocations []string `yaml:"invocations,omitempty"`
}

// Assertion type constants.
const (
	AssertParcelEquals = "parcel_equals"
	AssertParcelAbsent = "parcel_absent"
	AssertExecCount    = "exec_count"
	AssertExecOrder    = "exec_order"
	AssertRounds       = "rounds"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml and *.yml file in dir, in file name
// order.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("scenario %q defined in both %s and %s", s.Name, prev, path)
		}
		seen[s.Name] = path
		out = append(out, s)
	}
	return out, nil
}

// expectedStatus returns the status the scenario expects.
func (s *Scenario) expectedStatus() engine.Status {
	if s.ExpectStatus == "" {
		return engine.StatusSucceeded
	}
	return engine.Status(s.ExpectStatus)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Workflow == "" {
		return fmt.Errorf("workflow is required")
	}
	if s.MaxRounds < 0 {
		return fmt.Errorf("max_rounds must be non-negative")
	}

	switch s.expectedStatus() {
	case engine.StatusSucceeded, engine.StatusDeadlocked, engine.StatusFailed:
	default:
		return fmt.Errorf("unknown expect_status %q", s.ExpectStatus)
	}

	for name := range s.Data {
		n, err := parcel.ParseName(name)
		if err != nil {
			return fmt.Errorf("data.%s: %w", name, err)
		}
		if n.Indexed {
			return fmt.Errorf("data.%s: initial data names must not be indexed", name)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertParcelEquals, AssertParcelAbsent:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
		if _, err := parcel.ParseName(a.Name); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertExecCount:
		if a.Node == "" {
			return fmt.Errorf("assertions[%d]: node is required for exec_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for exec_count", index)
		}
	case AssertExecOrder:
		if len(a.Invocations) == 0 {
			return fmt.Errorf("assertions[%d]: invocations list is required for exec_order", index)
		}
	case AssertRounds:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for rounds", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
