// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	// Highly repetitive data compresses under both codecs.
	data := bytes.Repeat([]byte("carton object payload "), 200)

	for _, preferred := range []Compression{CompressionLZ4, CompressionZstd} {
		payload, actual, err := compress(data, preferred)
		if err != nil {
			t.Fatalf("compress(%s): %v", preferred, err)
		}
		if actual != preferred {
			t.Errorf("compressible data stored as %s, want %s", actual, preferred)
		}
		if len(payload) >= len(data) {
			t.Errorf("%s payload is not smaller: %d >= %d", preferred, len(payload), len(data))
		}

		restored, err := decompress(payload, actual, len(data))
		if err != nil {
			t.Fatalf("decompress(%s): %v", actual, err)
		}
		if !bytes.Equal(restored, data) {
			t.Errorf("%s round trip changed the data", preferred)
		}
	}
}

func TestCompressFallsBackForIncompressibleData(t *testing.T) {
	data := make([]byte, 4096)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("rand: %v", err)
	}

	payload, actual, err := compress(data, CompressionZstd)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if actual != CompressionNone {
		t.Errorf("random data stored as %s, want none", actual)
	}
	if !bytes.Equal(payload, data) {
		t.Error("uncompressed payload differs from input")
	}
}

func TestDecompressVerifiesSize(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1000)
	payload, actual, err := compress(data, CompressionLZ4)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := decompress(payload, actual, 999); err == nil {
		t.Error("size mismatch went undetected")
	}
}

func TestCompressionNonePassesThrough(t *testing.T) {
	data := []byte("small")
	payload, actual, err := compress(data, CompressionNone)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if actual != CompressionNone || !bytes.Equal(payload, data) {
		t.Errorf("none compression altered the payload: %s %q", actual, payload)
	}
}
