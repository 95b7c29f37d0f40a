package parcel

import (
	"fmt"
	"time"
)

// Parcel is an immutable named data unit held in workflow state.
//
// There are no setters. The engine compares parcels by name only; values are
// opaque to scheduling.
type Parcel struct {
	name      Name
	value     any
	createdAt time.Time
	producer  string
}

// New creates a parcel stamped with the current wall time.
func New(name Name, value any) Parcel {
	return NewAt(name, value, time.Now(), "")
}

// NewAt creates a parcel with an explicit creation time and producer.
// producer is the ID of the node whose output created the parcel, or empty
// for seeded parcels.
func NewAt(name Name, value any, createdAt time.Time, producer string) Parcel {
	return Parcel{
		name:      name,
		value:     value,
		createdAt: createdAt,
		producer:  producer,
	}
}

// Name returns the parcel's name.
func (p Parcel) Name() Name { return p.name }

// Value returns the parcel's payload.
func (p Parcel) Value() any { return p.value }

// CreatedAt returns when the parcel was created.
func (p Parcel) CreatedAt() time.Time { return p.createdAt }

// Producer returns the producing node ID, or "" for seeded parcels.
func (p Parcel) Producer() string { return p.producer }

func (p Parcel) String() string {
	return fmt.Sprintf("Parcel(%s=%v)", p.name, p.value)
}
