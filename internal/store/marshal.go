package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/parcelflow/internal/parcel"
)

// marshalValue converts a parcel value to canonical JSON TEXT for storage.
func marshalValue(v any) (string, error) {
	data, err := parcel.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalOutputs stores an execution's output names as a JSON array.
func marshalOutputs(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := parcel.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal outputs: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON. Integral numbers that fit an int come
// back as int so values read back compare equal to what the nodes produced.
func unmarshalValue(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return fromNumbers(v), nil
}

func unmarshalOutputs(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func fromNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil && i >= math.MinInt && i <= math.MaxInt {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = fromNumbers(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = fromNumbers(x[k])
		}
		return x
	default:
		return v
	}
}
