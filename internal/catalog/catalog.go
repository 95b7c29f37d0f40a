package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

//go:embed schema.cue
var schemaSource []byte

//go:embed defs/*.cue
var builtinDefs embed.FS

// Catalog is a set of compiled workflows, keyed by name.
type Catalog struct {
	byName map[string]*Workflow
}

func newCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*Workflow)}
}

// Get returns the workflow registered under name.
func (c *Catalog) Get(name string) (*Workflow, bool) {
	wf, ok := c.byName[name]
	return wf, ok
}

// List returns every workflow sorted by name.
func (c *Catalog) List() []*Workflow {
	out := make([]*Workflow, 0, len(c.byName))
	for _, wf := range c.byName {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every workflow name, sorted.
func (c *Catalog) Names() []string {
	list := c.List()
	out := make([]string, len(list))
	for i, wf := range list {
		out[i] = wf.Name
	}
	return out
}

// Len returns the number of workflows.
func (c *Catalog) Len() int {
	return len(c.byName)
}

// Merge adds every workflow of other. A name present in both is an error.
func (c *Catalog) Merge(other *Catalog) error {
	for _, wf := range other.List() {
		if _, dup := c.byName[wf.Name]; dup {
			return fmt.Errorf("workflow %q is defined twice", wf.Name)
		}
		c.byName[wf.Name] = wf
	}
	return nil
}

// LoadBuiltin compiles the embedded workflows.
func LoadBuiltin() (*Catalog, error) {
	ctx := cuecontext.New()
	value := compileSchema(ctx)

	entries, err := fs.ReadDir(builtinDefs, "defs")
	if err != nil {
		return nil, fmt.Errorf("reading built-in workflows: %w", err)
	}
	for _, e := range entries {
		name := path.Join("defs", e.Name())
		src, err := builtinDefs.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		value = value.Unify(ctx.CompileBytes(src, cue.Filename(name)))
	}

	return fromValue(value)
}

// LoadDir loads every CUE file of the package in dir. Files must share one
// package clause.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("workflow directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return fromValue(compileSchema(ctx).Unify(value))
}

// FindCUEFiles returns the .cue files directly inside dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func compileSchema(ctx *cue.Context) cue.Value {
	return ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
}

// fromValue compiles every entry under the top-level workflow field.
func fromValue(value cue.Value) (*Catalog, error) {
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := newCatalog()
	workflows := value.LookupPath(cue.ParsePath("workflow"))
	if !workflows.Exists() {
		return c, nil
	}

	iter, err := workflows.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		wf, err := CompileWorkflow(iter.Label(), iter.Value())
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", iter.Label(), err)
		}
		c.byName[wf.Name] = wf
	}
	return c, nil
}
