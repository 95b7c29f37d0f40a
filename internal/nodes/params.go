package nodes

import (
	"fmt"
	"sort"
	"strings"
)

// Params holds the per-node settings of a workflow definition.
type Params map[string]any

// String returns the string at key, or def when the key is absent.
func (p Params) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %s: want string, got %T", key, v)
	}
	return s, nil
}

// Bool returns the bool at key, or def when the key is absent.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("param %s: want bool, got %T", key, v)
	}
	return b, nil
}

// Only rejects keys outside allowed.
func (p Params) Only(allowed ...string) error {
	var unknown []string
	for k := range p {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("unknown params: %s", strings.Join(unknown, ", "))
}

// reader accumulates the first error across several param reads.
type reader struct {
	p   Params
	err error
}

func (r *reader) str(key, def string) string {
	s, err := r.p.String(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return s
}

func (r *reader) boolean(key string, def bool) bool {
	b, err := r.p.Bool(key, def)
	if err != nil && r.err == nil {
		r.err = err
	}
	return b
}
