// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package object

import "testing"

func TestLeafMetadata(t *testing.T) {
	m := Leaf(100)
	if !m.Complete || m.Count != 1 || m.Depth != 1 || m.Weight != 100 {
		t.Errorf("Leaf(100) = %+v", m)
	}
}

func TestAddAccumulatesChildren(t *testing.T) {
	parent := Leaf(10)
	parent.Add(Leaf(100))
	parent.Add(Leaf(200))

	if parent.Count != 3 {
		t.Errorf("count = %d, want 3", parent.Count)
	}
	if parent.Weight != 310 {
		t.Errorf("weight = %d, want 310", parent.Weight)
	}
	if parent.Depth != 2 {
		t.Errorf("depth = %d, want 2", parent.Depth)
	}
	if !parent.Complete {
		t.Error("parent of complete children is incomplete")
	}
}

func TestAddDeepChildRaisesDepth(t *testing.T) {
	deep := Leaf(1)
	deep.Depth = 5

	parent := Leaf(1)
	parent.Add(Leaf(1))
	parent.Add(deep)
	if parent.Depth != 6 {
		t.Errorf("depth = %d, want 6", parent.Depth)
	}
}

func TestIncompletenessIsMonotone(t *testing.T) {
	// One incomplete child makes every ancestor incomplete, no matter
	// how many complete siblings it has.
	parent := Leaf(1)
	parent.Add(Leaf(1))
	parent.Add(Unknown())
	parent.Add(Leaf(1))
	if parent.Complete {
		t.Error("parent with an unknown child is complete")
	}

	grandparent := Leaf(1)
	grandparent.Add(parent)
	if grandparent.Complete {
		t.Error("incompleteness did not propagate upward")
	}
}

func TestUnknownContributesNothing(t *testing.T) {
	parent := Leaf(10)
	parent.Add(Unknown())
	if parent.Count != 1 || parent.Weight != 10 {
		t.Errorf("unknown child changed count/weight: %+v", parent)
	}
}
