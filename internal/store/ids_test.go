package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/roach88/pkgprobe/internal/harness"
)

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("run-1", "run-2")

	if got := g.Generate(); got != "run-1" {
		t.Errorf("first Generate() = %q, want run-1", got)
	}
	if got := g.Generate(); got != "run-2" {
		t.Errorf("second Generate() = %q, want run-2", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Generate() after exhaustion should panic")
		}
	}()
	g.Generate()
}

func TestUUIDv7Generator_Sortable(t *testing.T) {
	var g UUIDv7Generator
	prev := g.Generate()
	for i := 0; i < 100; i++ {
		next := g.Generate()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestTraceDigest_DomainSeparated(t *testing.T) {
	trace := []byte(`{"pass":true}`)

	plain := sha256.Sum256(trace)
	if TraceDigest(trace) == hex.EncodeToString(plain[:]) {
		t.Error("digest should not equal the undomained hash")
	}
	if TraceDigest(trace) != TraceDigest([]byte(`{"pass":true}`)) {
		t.Error("digest should be deterministic")
	}
	if TraceDigest(trace) == TraceDigest([]byte(`{"pass":false}`)) {
		t.Error("different traces should have different digests")
	}
	if len(TraceDigest(trace)) != 64 {
		t.Errorf("digest length = %d, want 64", len(TraceDigest(trace)))
	}
}

func TestRecordRun_FixedIDsAndDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewFixedGenerator("run-a", "run-b", "run-c")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for _, name := range []string{"install", "install"} {
		if _, err := s.RecordRun(ctx, name, createTestResult()); err != nil {
			t.Fatalf("RecordRun() failed: %v", err)
		}
	}
	other := harness.NewResult()
	if _, err := s.RecordRun(ctx, "install", other); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "run-a" || runs[2].ID != "run-c" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Digest == "" || runs[0].Digest != runs[1].Digest {
		t.Errorf("identical traces should share a digest: %q vs %q", runs[0].Digest, runs[1].Digest)
	}
	if runs[0].Digest == runs[2].Digest {
		t.Error("different traces should not share a digest")
	}

	trace, err := harness.MarshalTrace("install", createTestResult())
	if err != nil {
		t.Fatalf("MarshalTrace() failed: %v", err)
	}
	if runs[0].Digest != TraceDigest(trace) {
		t.Errorf("digest = %s, want TraceDigest of the canonical trace", runs[0].Digest)
	}
	if runs[0].StartedAt == "" {
		t.Error("started_at should fall back to the current time")
	}
}

func TestRecordRun_DuplicateIDFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(NewFixedGenerator("same", "same")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.RecordRun(context.Background(), "x", createTestResult()); err != nil {
		t.Fatalf("first RecordRun() failed: %v", err)
	}
	if _, err := s.RecordRun(context.Background(), "x", createTestResult()); err == nil {
		t.Error("second RecordRun() with the same id should fail")
	}
}
