// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package object defines Carton's content-addressed object model: ids,
// the serialized data records for each object kind, and the aggregate
// metadata carried by every object.
//
// An id is a kind plus a 32-byte BLAKE3 keyed digest of the object's
// canonical bytes. Each kind hashes in its own domain (one fixed key
// per kind), so equal bytes in different kinds never collide. Ids are
// a pure function of serialized structure: identical structure yields
// identical ids, which is what makes deduplication fall out of the
// store for free.
//
// Six kinds exist. Blob, directory, file, and symlink are the ordinary
// artifact kinds. Graph and reference exist for cycles: a graph object
// packs every node of one strongly connected component into a single
// record (members address each other by index, since their ids cannot
// exist before the record is hashed), and a reference object gives
// each member a stable standalone id of the form {graph id, index}.
//
// Records serialize through lib/codec (deterministic CBOR). The Child
// type is the uniform edge representation — either a content id or a
// local index — shared by graph objects and the lockfile format.
package object
