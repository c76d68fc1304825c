// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"encoding/json"
	"fmt"

	"github.com/carton-build/carton/lib/codec"
)

// Child is one outgoing reference in an object record. It is either a
// content id (the target lives outside the enclosing record) or a
// local index (the target is another node of the same graph object, or
// another record of the same lockfile). Exactly one of the two forms
// is set.
//
// Child serializes as a bare value, not a struct: a text string for
// the id form, an integer for the index form. This keeps records
// compact and makes the two forms trivially distinguishable.
type Child struct {
	ID    ID
	Index int
	Local bool
}

// ChildID returns a Child addressing an object by content id.
func ChildID(id ID) Child { return Child{ID: id} }

// ChildIndex returns a Child addressing a sibling node by local index.
func ChildIndex(index int) Child { return Child{Index: index, Local: true} }

// MarshalCBOR implements cbor.Marshaler.
func (c Child) MarshalCBOR() ([]byte, error) {
	if c.Local {
		return codec.Marshal(c.Index)
	}
	if c.ID.IsZero() {
		return nil, fmt.Errorf("cannot serialize a child with no id and no index")
	}
	return codec.Marshal(c.ID.String())
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (c *Child) UnmarshalCBOR(data []byte) error {
	var index int
	if err := codec.Unmarshal(data, &index); err == nil {
		*c = ChildIndex(index)
		return nil
	}
	var s string
	if err := codec.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("child is neither an index nor an id string: %w", err)
	}
	id, err := ParseID(s)
	if err != nil {
		return err
	}
	*c = ChildID(id)
	return nil
}

// MarshalJSON implements json.Marshaler with the same bare-value
// convention as the CBOR form. Used by the lockfile.
func (c Child) MarshalJSON() ([]byte, error) {
	if c.Local {
		return json.Marshal(c.Index)
	}
	if c.ID.IsZero() {
		return nil, fmt.Errorf("cannot serialize a child with no id and no index")
	}
	return json.Marshal(c.ID.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Child) UnmarshalJSON(data []byte) error {
	var index int
	if err := json.Unmarshal(data, &index); err == nil {
		*c = ChildIndex(index)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("child is neither an index nor an id string: %w", err)
	}
	id, err := ParseID(s)
	if err != nil {
		return err
	}
	*c = ChildID(id)
	return nil
}

// DirectoryData is the serialized form of a directory object: entry
// name to child artifact.
type DirectoryData struct {
	Entries map[string]Child `cbor:"entries" json:"entries"`
}

// FileData is the serialized form of a file object. Dependencies maps
// the import specifier text (exactly as written in the module source
// or sidecar) to the resolved referent. A nil referent means the
// dependency was deliberately left unresolved; the specifier itself is
// the reference, re-resolved whenever the file takes part in a solve.
type FileData struct {
	Contents     ID                `cbor:"contents" json:"contents"`
	Dependencies map[string]*Child `cbor:"dependencies,omitempty" json:"dependencies,omitempty"`
	Executable   bool              `cbor:"executable,omitempty" json:"executable,omitempty"`
}

// SymlinkData is the serialized form of a symlink object. An artifact
// symlink carries the target artifact (and optionally a path within
// it); a plain symlink carries only the literal target path.
type SymlinkData struct {
	Artifact *Child `cbor:"artifact,omitempty" json:"artifact,omitempty"`
	Path     string `cbor:"path,omitempty" json:"path,omitempty"`
}

// GraphNode is one member of a graph object: a kind tag plus exactly
// one populated payload. Payload children may use the local index form
// for edges to other members of the same graph object.
type GraphNode struct {
	Kind      string         `cbor:"kind" json:"kind"`
	Directory *DirectoryData `cbor:"directory,omitempty" json:"directory,omitempty"`
	File      *FileData      `cbor:"file,omitempty" json:"file,omitempty"`
	Symlink   *SymlinkData   `cbor:"symlink,omitempty" json:"symlink,omitempty"`
}

// GraphData is the serialized form of a graph object: every node of
// one strongly connected component in canonical order. Intra-component
// edges are local indices into Nodes; edges leaving the component are
// content ids.
type GraphData struct {
	Nodes []GraphNode `cbor:"nodes" json:"nodes"`
}

// ReferenceData is the serialized form of a reference object: a stable
// standalone id for one member of a graph object.
type ReferenceData struct {
	Graph ID  `cbor:"graph" json:"graph"`
	Node  int `cbor:"node" json:"node"`
}

// Encode serializes a data record deterministically and returns the
// bytes together with their content id. The record's concrete type
// selects the kind (and therefore the hash domain).
func Encode(record any) ([]byte, ID, error) {
	var kind Kind
	switch record.(type) {
	case *DirectoryData, DirectoryData:
		kind = KindDirectory
	case *FileData, FileData:
		kind = KindFile
	case *SymlinkData, SymlinkData:
		kind = KindSymlink
	case *GraphData, GraphData:
		kind = KindGraph
	case *ReferenceData, ReferenceData:
		kind = KindReference
	default:
		return nil, ID{}, fmt.Errorf("cannot encode %T as an object record", record)
	}

	data, err := codec.Marshal(record)
	if err != nil {
		return nil, ID{}, fmt.Errorf("encoding %s record: %w", kind, err)
	}
	return data, HashID(kind, data), nil
}

// Decode deserializes object bytes according to the kind carried by
// the id. Blob objects decode to their raw bytes; every other kind
// decodes to a pointer to its data record.
func Decode(id ID, data []byte) (any, error) {
	switch id.Kind() {
	case KindBlob:
		return data, nil
	case KindDirectory:
		record := new(DirectoryData)
		if err := codec.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decoding directory %s: %w", id.Short(), err)
		}
		return record, nil
	case KindFile:
		record := new(FileData)
		if err := codec.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decoding file %s: %w", id.Short(), err)
		}
		return record, nil
	case KindSymlink:
		record := new(SymlinkData)
		if err := codec.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decoding symlink %s: %w", id.Short(), err)
		}
		return record, nil
	case KindGraph:
		record := new(GraphData)
		if err := codec.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decoding graph %s: %w", id.Short(), err)
		}
		return record, nil
	case KindReference:
		record := new(ReferenceData)
		if err := codec.Unmarshal(data, record); err != nil {
			return nil, fmt.Errorf("decoding reference %s: %w", id.Short(), err)
		}
		return record, nil
	default:
		return nil, fmt.Errorf("cannot decode object of kind %s", id.Kind())
	}
}
