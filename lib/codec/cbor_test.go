// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalMapKeyOrderIsDeterministic(t *testing.T) {
	value := map[string]int{"zebra": 1, "apple": 2, "mango": 3, "b": 4}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding varies across runs")
		}
	}
}

func TestRoundTrip(t *testing.T) {
	type record struct {
		Name  string         `cbor:"name"`
		Count int            `cbor:"count"`
		Tags  map[string]int `cbor:"tags,omitempty"`
	}
	in := record{Name: "artifact", Count: 7, Tags: map[string]int{"a": 1}}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out record
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Name != in.Name || out.Count != in.Count || out.Tags["a"] != 1 {
		t.Errorf("round trip changed %+v to %+v", in, out)
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{"known": "x", "added_later": 42})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out struct {
		Known string `cbor:"known"`
	}
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Known != "x" {
		t.Errorf("known field = %q", out.Known)
	}
}

func TestUnmarshalAnyUsesStringKeyedMaps(t *testing.T) {
	data, err := Marshal(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out any
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", out)
	}
	if m["k"] != "v" {
		t.Errorf("decoded map = %v", m)
	}
}
