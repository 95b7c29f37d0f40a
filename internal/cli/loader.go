package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/parcelflow/internal/catalog"
	"github.com/roach88/parcelflow/internal/parcel"
)

// loadCatalog returns the built-in workflows, plus those defined in dir when
// dir is set. A name defined in both is an error.
func loadCatalog(dir string) (*catalog.Catalog, error) {
	cat, err := catalog.LoadBuiltin()
	if err != nil {
		return nil, fmt.Errorf("built-in workflows: %w", err)
	}
	if dir == "" {
		return cat, nil
	}

	extra, err := catalog.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := cat.Merge(extra); err != nil {
		return nil, err
	}
	return cat, nil
}

// loadData reads initial data overrides from a YAML or JSON file. The
// top level must be a mapping of bare names. An empty file overrides nothing.
func loadData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var data map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse data file %s: %w", path, err)
	}
	for name := range data {
		n, err := parcel.ParseName(name)
		if err != nil {
			return nil, fmt.Errorf("data file %s: %w", path, err)
		}
		if n.Indexed {
			return nil, fmt.Errorf("data file %s: name %s must not be indexed", path, name)
		}
	}
	return data, nil
}
