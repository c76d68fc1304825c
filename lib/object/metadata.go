// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package object

// Metadata is the aggregate bookkeeping attached to every object.
// Count and weight are additive over children; depth is one more than
// the deepest child. Completeness is monotone: an object is complete
// iff it is stored and every transitive child is complete.
type Metadata struct {
	Complete bool   `cbor:"complete" json:"complete"`
	Count    uint64 `cbor:"count" json:"count"`
	Depth    uint64 `cbor:"depth" json:"depth"`
	Weight   uint64 `cbor:"weight" json:"weight"`
}

// Unknown is the metadata assumed for an object whose values are not
// recorded (e.g. an id referenced from the backing store without an
// index row). Unknown objects are treated as incomplete and contribute
// nothing to their parents' counts.
func Unknown() Metadata {
	return Metadata{Complete: false}
}

// Leaf returns the metadata of an object with no children: a count of
// one, a depth of one, and the serialized size as weight.
func Leaf(size uint64) Metadata {
	return Metadata{Complete: true, Count: 1, Depth: 1, Weight: size}
}

// Add folds one child's metadata into m. The receiver must have been
// initialized with [Leaf] (for its own size) before children are
// folded in.
func (m *Metadata) Add(child Metadata) {
	m.Complete = m.Complete && child.Complete
	m.Count += child.Count
	m.Weight += child.Weight
	if child.Depth+1 > m.Depth {
		m.Depth = child.Depth + 1
	}
}
