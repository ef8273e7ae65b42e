package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/odvcencio/histdb/pkg/compress"
)

func TestBlobStorePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tx := newMemTx()
	bs, err := NewBlobStore(tx, compress.DefaultLevel)
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	raw := bytes.Repeat([]byte("line of repeated file content\n"), 100)
	h := hashOf("blob")

	exists, err := bs.Exists(ctx, h)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("Exists before Put")
	}
	for i := 0; i < 2; i++ {
		added, err := bs.Put(ctx, h, raw)
		if err != nil {
			t.Fatalf("Put #%d: %v", i+1, err)
		}
		if added != (i == 0) {
			t.Errorf("Put #%d added = %v", i+1, added)
		}
	}
	exists, err = bs.Exists(ctx, h)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("Exists false after Put")
	}

	if bs.Added != 1 {
		t.Errorf("Added = %d, want 1", bs.Added)
	}
	if bs.RawBytes != int64(len(raw)) {
		t.Errorf("RawBytes = %d, want %d", bs.RawBytes, len(raw))
	}
	if bs.StoredBytes <= 0 || bs.StoredBytes >= bs.RawBytes {
		t.Errorf("StoredBytes = %d, want between 0 and %d", bs.StoredBytes, bs.RawBytes)
	}

	got, err := compress.Decompress(tx.blobs[h])
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("stored content does not round trip")
	}
}

func TestBlobStoreRejectsBadLevel(t *testing.T) {
	if _, err := NewBlobStore(newMemTx(), 42); err == nil {
		t.Fatal("NewBlobStore accepted level 42")
	}
}
