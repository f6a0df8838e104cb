package history

import (
	"context"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2021, 4, 14, 9, 53, 13, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, Capture{
			TakenAt: base.Add(time.Duration(i) * time.Second),
			Model:   "DS1104Z",
			Path:    "/shots/a.png",
			Format:  "png",
			Note:    "run",
			PHash:   uint64(i + 1),
		})
		if err != nil {
			t.Fatalf("Record = %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].PHash != 3 || got[1].PHash != 2 {
		t.Errorf("order = %d,%d, want newest first 3,2", got[0].PHash, got[1].PHash)
	}
	if got[0].Model != "DS1104Z" || got[0].Format != "png" || got[0].Note != "run" {
		t.Errorf("row = %+v", got[0])
	}
}

func TestLastHash(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, ok, err := s.LastHash(ctx); err != nil || ok {
		t.Fatalf("LastHash on empty log = %v ok=%v, want 0,false,nil", err, ok)
	}

	if _, err := s.Record(ctx, Capture{TakenAt: time.Now(), Model: "DS1054Z", Path: "x", Format: "png", PHash: 0xDEAD}); err != nil {
		t.Fatalf("Record = %v", err)
	}

	hash, ok, err := s.LastHash(ctx)
	if err != nil || !ok {
		t.Fatalf("LastHash = %v ok=%v", err, ok)
	}
	if hash != 0xDEAD {
		t.Errorf("hash = %#x, want 0xDEAD", hash)
	}
}

func TestRecentEmpty(t *testing.T) {
	s := testStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
