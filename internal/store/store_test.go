package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/zoobzio/dispatchz"
)

func TestStoreRecordsAndCountsFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	results := []dispatchz.Result{
		{TaskID: 1, Status: dispatchz.StatusOK, ExecTime: time.Second},
		{TaskID: 2, Status: dispatchz.StatusTaskKilled, RawArgs: "x,y"},
		{TaskID: 3, Status: dispatchz.StatusMemErr, RawArgs: "a"},
	}
	for _, r := range results {
		if err := s.Record(ctx, r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	failed, err := s.CountFailed(ctx)
	if err != nil {
		t.Fatalf("CountFailed: %v", err)
	}
	if failed != 2 {
		t.Errorf("expected 2 failed rows, got %d", failed)
	}
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopening existing db: %v", err)
	}
	defer s2.Close()
}
