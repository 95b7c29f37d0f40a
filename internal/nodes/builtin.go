package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/parcelflow/internal/node"
	"github.com/roach88/parcelflow/internal/parcel"
)

// Transform operations.
const (
	OpUppercase = "uppercase"
	OpAddPrefix = "add_prefix"
	OpIdentity  = "identity"
)

// DefaultPrefix is the prefix used by transform's add_prefix operation and by
// process.
const DefaultPrefix = "PROCESSED: "

func builtins() []Kind {
	return []Kind{
		{
			Name:        "request",
			Description: "Marks the request as received. Requires nothing.",
			Params:      []string{"output", "message"},
			New:         newRequest,
		},
		{
			Name:        "validate",
			Description: "Checks that the input is non-empty and reports {valid, message}.",
			Params:      []string{"input", "output"},
			New:         newValidate,
		},
		{
			Name:        "transform",
			Description: "Transforms a validation message (uppercase, add_prefix or identity).",
			Params:      []string{"input", "output", "operation", "prefix"},
			New:         newTransform,
		},
		{
			Name:        "log",
			Description: "Builds a log entry for the input.",
			Params:      []string{"input", "output"},
			New:         newLog,
		},
		{
			Name:        "spread",
			Description: "Spreads a list into an indexed family and its count.",
			Params:      []string{"input", "prefix"},
			New:         newSpread,
		},
		{
			Name:        "process",
			Description: "Processes one family member per invocation.",
			Params:      []string{"input", "output", "prefix", "suffix", "upper"},
			New:         newProcess,
		},
		{
			Name:        "collect",
			Description: "Gathers a complete family, sized by its count, into a list.",
			Params:      []string{"family", "count", "output"},
			New:         newCollect,
		},
		{
			Name:        "response",
			Description: "Wraps the input as {status: success, data}.",
			Params:      []string{"input", "output"},
			New:         newResponse,
		},
	}
}

// text renders a value the way log and process nodes print it.
func text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func newRequest(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	output := r.str("output", "request_received")
	message := r.str("message", "Initial request received")
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, nil, []string{output},
		func(context.Context, *node.Input) (map[string]any, error) {
			return map[string]any{output: message}, nil
		}), nil
}

func newValidate(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "request_data")
	output := r.str("output", "validation_result")
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, []string{input}, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			valid := len(text(in.MustValue(input))) > 0
			message := "Data is valid"
			if !valid {
				message = "Data is invalid"
			}
			return map[string]any{output: map[string]any{
				"valid":   valid,
				"message": message,
			}}, nil
		}), nil
}

func newTransform(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "validation_result")
	output := r.str("output", "transformed_data")
	op := r.str("operation", OpUppercase)
	prefix := r.str("prefix", DefaultPrefix)
	if r.err != nil {
		return nil, r.err
	}
	switch op {
	case OpUppercase, OpAddPrefix, OpIdentity:
	default:
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	return node.New(id, []string{input}, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			validation, ok := in.MustValue(input).(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s is not a validation result", input)
			}
			if valid, _ := validation["valid"].(bool); !valid {
				return map[string]any{output: "Invalid data - no transformation applied"}, nil
			}

			message := text(validation["message"])
			switch op {
			case OpUppercase:
				message = strings.ToUpper(message)
			case OpAddPrefix:
				message = prefix + message
			}
			return map[string]any{output: message}, nil
		}), nil
}

func newLog(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "request_data")
	output := r.str("output", "log_entry")
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, []string{input}, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			return map[string]any{output: map[string]any{
				"message": "Request processed: " + text(in.MustValue(input)),
				"level":   "INFO",
			}}, nil
		}), nil
}

func newSpread(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "request_data")
	prefix := r.str("prefix", "user")
	if r.err != nil {
		return nil, r.err
	}
	if !parcel.IsBase(prefix) {
		return nil, fmt.Errorf("invalid prefix %q", prefix)
	}

	return node.New(id, []string{input}, []string{prefix, parcel.CountName(prefix)},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			items, ok := parcel.AsList(in.MustValue(input))
			if !ok {
				return nil, fmt.Errorf("input %s must be a list", input)
			}
			return parcel.Spread(prefix, items), nil
		}), nil
}

func newProcess(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "user")
	output := r.str("output", "processed")
	prefix := r.str("prefix", DefaultPrefix)
	suffix := r.str("suffix", "")
	upper := r.boolean("upper", true)
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, []string{input}, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			s := text(in.MustValue(input))
			if upper {
				s = strings.ToUpper(s)
			}
			return map[string]any{output: prefix + s + suffix}, nil
		}), nil
}

func newCollect(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	family := r.str("family", "processed")
	count := r.str("count", parcel.CountName("user"))
	output := r.str("output", "result")
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, nil, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			items, err := in.Collect(family, count)
			if err != nil {
				return nil, err
			}
			return map[string]any{output: items}, nil
		},
		node.WithGather(family, count)), nil
}

func newResponse(id string, p Params) (node.Node, error) {
	r := &reader{p: p}
	input := r.str("input", "result")
	output := r.str("output", "response")
	if r.err != nil {
		return nil, r.err
	}

	return node.New(id, []string{input}, []string{output},
		func(_ context.Context, in *node.Input) (map[string]any, error) {
			return map[string]any{output: map[string]any{
				"status": "success",
				"data":   in.MustValue(input),
			}}, nil
		}), nil
}
