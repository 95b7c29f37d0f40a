package engine

import (
	"github.com/roach88/parcelflow/internal/parcel"
)

// commit applies a round's staged outputs after the barrier.
//
// Outputs arrive in execution order, which is registration order, so the
// first staged writer of a name wins. A name already bound in an earlier
// round always wins. In strict mode any conflict fails the round before
// anything is bound.
func (r *run) commit(round int, outputs []staged) error {
	claimed := make(map[string]string, len(outputs))
	var accepted []staged
	var conflicts []Conflict

	for _, s := range outputs {
		key := s.name.String()

		winner, taken := claimed[key]
		if !taken {
			if p, ok := r.state.Lookup(s.name); ok {
				winner, taken = p.Producer(), true
			}
		}
		if taken {
			conflicts = append(conflicts, Conflict{
				Name:     key,
				Round:    round,
				NodeID:   s.producer,
				Index:    s.index,
				HasIndex: s.indexed,
				Winner:   winner,
			})
			continue
		}

		claimed[key] = s.producer
		accepted = append(accepted, s)
	}

	for _, c := range conflicts {
		r.log.Warn("output conflict",
			"round", round,
			"name", c.Name,
			"node_id", c.NodeID,
			"winner", c.Winner,
		)
	}
	r.result.Conflicts = append(r.result.Conflicts, conflicts...)

	if r.e.strict && len(conflicts) > 0 {
		return NewConflictError(r.id, conflicts[0])
	}

	at := r.e.now()
	for _, s := range accepted {
		// Cannot collide: accepted names are unclaimed and unbound.
		if err := r.state.Bind(parcel.NewAt(s.name, s.value, at, s.producer)); err != nil {
			return err
		}
	}

	r.log.Debug("round committed",
		"round", round,
		"bound", len(accepted),
		"conflicts", len(conflicts),
	)
	return nil
}
