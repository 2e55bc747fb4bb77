package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/christopher/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListHistory(t *testing.T) {
	noColor = true
	t.Cleanup(func() { noColor = false })

	ctx := context.Background()
	s := openTestStore(t)

	var buf bytes.Buffer
	if err := listHistory(ctx, s, &buf, 10, 0); err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "No interactions found.") {
		t.Errorf("empty log output = %q", buf.String())
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := s.SaveInteraction(ctx, storage.Interaction{CreatedAt: base, TaskType: "debug", UserInput: "int main(\n{"}); err != nil {
		t.Fatal(err)
	}
	second, err := s.SaveInteraction(ctx, storage.Interaction{CreatedAt: base.Add(time.Minute), TaskType: "explain", UserInput: strings.Repeat("x", 100)})
	if err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	if err := listHistory(ctx, s, &buf, 10, 0); err != nil {
		t.Fatalf("listHistory: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], second.ID) {
		t.Errorf("newest interaction should be listed first: %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], strings.Repeat("x", 60)+"...") {
		t.Errorf("long input not truncated: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "int main( {") {
		t.Errorf("multi-line input not flattened: %q", lines[1])
	}
}

func TestExportMemory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	const n = 150
	for range n {
		if _, err := s.SaveMemory(ctx, "q\na", []float32{0.5, -1}); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	got, err := exportMemory(ctx, s, &buf)
	if err != nil {
		t.Fatalf("exportMemory: %v", err)
	}
	if got != n {
		t.Errorf("exported %d entries, want %d", got, n)
	}

	seen := map[string]bool{}
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var e storage.MemoryEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %v", err)
		}
		if e.Text != "q\na" || len(e.Embedding) != 2 || e.Embedding[0] != 0.5 {
			t.Errorf("entry = %+v", e)
		}
		seen[e.ID] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 10); got != "héllo" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("héllo", 2); got != "hé..." {
		t.Errorf("truncate long = %q", got)
	}
}
