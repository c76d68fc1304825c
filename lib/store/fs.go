// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/sqlitepool"
)

// Directory and file names within the store root.
const (
	objectDir = "objects"
	tmpDir    = "tmp"
	indexFile = "index.db"
)

// objectHeaderSize is the fixed header preceding each object's
// payload: compression tag (1 byte) + uncompressed size (8 bytes LE).
const objectHeaderSize = 9

// indexSchema creates the metadata index tables. object_metadata holds
// the aggregate values the compiler needs for ids not produced in the
// current run. external_blobs records byte-range references into
// original on-disk files for destructive checkins; the artifact column
// is filled in once the enclosing artifact's id is known.
const indexSchema = `
CREATE TABLE IF NOT EXISTS object_metadata (
	id       TEXT PRIMARY KEY,
	complete INTEGER NOT NULL,
	count    INTEGER NOT NULL,
	depth    INTEGER NOT NULL,
	weight   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS external_blobs (
	id       TEXT PRIMARY KEY,
	path     TEXT NOT NULL,
	offset   INTEGER NOT NULL,
	length   INTEGER NOT NULL,
	artifact TEXT
);
`

// FsConfig holds the parameters for opening a filesystem store.
type FsConfig struct {
	// Root is the store directory. Created if it does not exist.
	Root string

	// Compression is the preferred algorithm for stored objects.
	// Individual objects fall back to none when incompressible.
	// Defaults to zstd.
	Compression Compression

	// PoolSize is the SQLite index connection pool size. Defaults per
	// sqlitepool.
	PoolSize int

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Fs is the local filesystem object store: one sharded file per
// object (compressed, with a small header), plus a SQLite index for
// metadata and external-blob records.
//
// Fs is safe for concurrent use. Object writes are idempotent — the
// same id always carries the same bytes, so concurrent writers of one
// id converge on identical content.
type Fs struct {
	root        string
	compression Compression
	pool        *sqlitepool.Pool
	logger      *slog.Logger
}

// OpenFs opens (creating if necessary) a store rooted at cfg.Root.
func OpenFs(cfg FsConfig) (*Fs, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	compression := cfg.Compression
	if compression == CompressionNone {
		compression = CompressionZstd
	}

	for _, dir := range []string{
		cfg.Root,
		filepath.Join(cfg.Root, objectDir),
		filepath.Join(cfg.Root, tmpDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(cfg.Root, indexFile),
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, indexSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening store index: %w", err)
	}

	return &Fs{
		root:        cfg.Root,
		compression: compression,
		pool:        pool,
		logger:      logger,
	}, nil
}

// Close closes the store's index pool.
func (s *Fs) Close() error {
	return s.pool.Close()
}

// Get implements [Store]. Objects stored by reference (destructive
// checkin) are read from their original file and verified.
func (s *Fs) Get(ctx context.Context, id object.ID) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(id))
	if err == nil {
		return s.decode(id, data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading object %s: %w", id.Short(), err)
	}

	external, ok, err := s.externalBlob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("object %s not found", id.Short())
	}
	return s.readExternal(id, external)
}

// Put implements [Store]: verify, compress, and write via atomic
// rename through the tmp directory.
func (s *Fs) Put(_ context.Context, id object.ID, data []byte) error {
	if computed := object.HashID(id.Kind(), data); computed != id {
		return fmt.Errorf("object bytes hash to %s, not %s", computed.Short(), id.Short())
	}

	finalPath := s.objectPath(id)

	// Dedup: same id means same bytes by construction.
	if _, err := os.Stat(finalPath); err == nil {
		return nil
	}

	payload, tag, err := compress(data, s.compression)
	if err != nil {
		return fmt.Errorf("compressing object %s: %w", id.Short(), err)
	}

	framed := make([]byte, objectHeaderSize+len(payload))
	framed[0] = byte(tag)
	binary.LittleEndian.PutUint64(framed[1:9], uint64(len(data)))
	copy(framed[objectHeaderSize:], payload)

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating object shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "object-*.bin")
	if err != nil {
		return fmt.Errorf("creating temp object file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(framed); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing object data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp object file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming object to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// Has implements [Store].
func (s *Fs) Has(ctx context.Context, id object.ID) (bool, error) {
	if _, err := os.Stat(s.objectPath(id)); err == nil {
		return true, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stating object %s: %w", id.Short(), err)
	}

	_, ok, err := s.externalBlob(ctx, id)
	return ok, err
}

// GetMetadata implements [Store].
func (s *Fs) GetMetadata(ctx context.Context, id object.ID) (object.Metadata, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return object.Metadata{}, false, fmt.Errorf("store index: %w", err)
	}
	defer s.pool.Put(conn)

	var metadata object.Metadata
	found := false
	err = sqlitex.Execute(conn,
		"SELECT complete, count, depth, weight FROM object_metadata WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				metadata = object.Metadata{
					Complete: stmt.ColumnInt64(0) != 0,
					Count:    uint64(stmt.ColumnInt64(1)),
					Depth:    uint64(stmt.ColumnInt64(2)),
					Weight:   uint64(stmt.ColumnInt64(3)),
				}
				return nil
			},
		})
	if err != nil {
		return object.Metadata{}, false, fmt.Errorf("querying metadata for %s: %w", id.Short(), err)
	}
	return metadata, found, nil
}

// PutMetadata implements [Store].
func (s *Fs) PutMetadata(ctx context.Context, id object.ID, metadata object.Metadata) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	defer s.pool.Put(conn)

	complete := 0
	if metadata.Complete {
		complete = 1
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO object_metadata (id, complete, count, depth, weight)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 complete = excluded.complete, count = excluded.count,
		 depth = excluded.depth, weight = excluded.weight`,
		&sqlitex.ExecOptions{
			Args: []any{
				id.String(), complete,
				int64(metadata.Count), int64(metadata.Depth), int64(metadata.Weight),
			},
		})
	if err != nil {
		return fmt.Errorf("writing metadata for %s: %w", id.Short(), err)
	}
	return nil
}

// externalRecord is one destructive-checkin byte-range reference.
type externalRecord struct {
	path   string
	offset int64
	length int64
}

// PutBlobExternal records a blob as a byte-range reference into an
// original on-disk file instead of copying the bytes. Used by
// destructive checkins. The enclosing artifact id is not yet known at
// record time; [Fs.BindArtifact] fills it in after compilation.
func (s *Fs) PutBlobExternal(ctx context.Context, contents []byte, path string, offset int64) (object.ID, error) {
	id := object.HashID(object.KindBlob, contents)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return object.ID{}, fmt.Errorf("store index: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO external_blobs (id, path, offset, length)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		&sqlitex.ExecOptions{
			Args: []any{id.String(), path, offset, int64(len(contents))},
		})
	if err != nil {
		return object.ID{}, fmt.Errorf("recording external blob %s: %w", id.Short(), err)
	}

	if err := s.PutMetadata(ctx, id, object.Leaf(uint64(len(contents)))); err != nil {
		return object.ID{}, err
	}
	return id, nil
}

// BindArtifact rewrites external blob records with the id of their
// smallest enclosing artifact, once compilation has assigned it.
func (s *Fs) BindArtifact(ctx context.Context, blobs []object.ID, artifact object.ID) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	defer s.pool.Put(conn)

	for _, id := range blobs {
		err := sqlitex.Execute(conn,
			"UPDATE external_blobs SET artifact = ? WHERE id = ?",
			&sqlitex.ExecOptions{
				Args: []any{artifact.String(), id.String()},
			})
		if err != nil {
			return fmt.Errorf("binding external blob %s to artifact %s: %w",
				id.Short(), artifact.Short(), err)
		}
	}
	return nil
}

// externalBlob looks up an external (by-reference) blob record.
func (s *Fs) externalBlob(ctx context.Context, id object.ID) (externalRecord, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return externalRecord{}, false, fmt.Errorf("store index: %w", err)
	}
	defer s.pool.Put(conn)

	var record externalRecord
	found := false
	err = sqlitex.Execute(conn,
		"SELECT path, offset, length FROM external_blobs WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				record = externalRecord{
					path:   stmt.ColumnText(0),
					offset: stmt.ColumnInt64(1),
					length: stmt.ColumnInt64(2),
				}
				return nil
			},
		})
	if err != nil {
		return externalRecord{}, false, fmt.Errorf("querying external blob %s: %w", id.Short(), err)
	}
	return record, found, nil
}

// readExternal reads a by-reference blob from its original file,
// verifying the content hash — the original file may have been
// modified since the destructive checkin recorded it.
func (s *Fs) readExternal(id object.ID, record externalRecord) ([]byte, error) {
	file, err := os.Open(record.path)
	if err != nil {
		return nil, fmt.Errorf("opening external blob source %s: %w", record.path, err)
	}
	defer file.Close()

	data := make([]byte, record.length)
	if _, err := file.ReadAt(data, record.offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading external blob %s from %s: %w", id.Short(), record.path, err)
	}

	if computed := object.HashID(object.KindBlob, data); computed != id {
		return nil, fmt.Errorf(
			"external blob %s: source file %s has changed since checkin (content now hashes to %s)",
			id.Short(), record.path, computed.Short())
	}
	return data, nil
}

// decode strips and validates the object file framing.
func (s *Fs) decode(id object.ID, framed []byte) ([]byte, error) {
	if len(framed) < objectHeaderSize {
		return nil, fmt.Errorf("object %s: truncated file (%d bytes)", id.Short(), len(framed))
	}
	tag := Compression(framed[0])
	size := binary.LittleEndian.Uint64(framed[1:9])
	data, err := decompress(framed[objectHeaderSize:], tag, int(size))
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", id.Short(), err)
	}
	return data, nil
}

// objectPath returns the sharded filesystem path for an object:
// objects/a3/f9/<full id string>.
func (s *Fs) objectPath(id object.ID) string {
	text := id.String()
	// The hex digest starts after the "xxx_" kind prefix.
	hex := text[4:]
	return filepath.Join(s.root, objectDir, hex[:2], hex[2:4], text)
}
