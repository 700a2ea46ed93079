package keyword

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeKeywordFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keywords.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write keyword file: %v", err)
	}
	return path
}

func TestLoadValidFile(t *testing.T) {
	path := writeKeywordFile(t, `{"keywords": ["Rot", "blau", "Größe"]}`)
	idx := Load(path, newLogger())
	if idx.Len() != 3 {
		t.Fatalf("expected 3 keywords, got %d", idx.Len())
	}
	if !idx.Contains("ROT") || !idx.Contains("größe") {
		t.Fatal("expected case-insensitive membership")
	}
}

func TestLoadMissingFileDegradesToEmpty(t *testing.T) {
	idx := Load(filepath.Join(t.TempDir(), "missing.json"), newLogger())
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", idx.Len())
	}
}

func TestLoadMalformedFileDegradesToEmpty(t *testing.T) {
	path := writeKeywordFile(t, `{"keywords": not json`)
	idx := Load(path, newLogger())
	if idx.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", idx.Len())
	}
}

func TestAllSortedOriginalCasing(t *testing.T) {
	idx := NewIndex([]string{"Zug", "Apfel", "blau"})
	got := idx.All()
	want := []string{"Apfel", "Zug", "blau"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNewIndexDeduplicatesByLowercase(t *testing.T) {
	idx := NewIndex([]string{"Rot", "rot", "ROT"})
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", idx.Len())
	}
	if !reflect.DeepEqual(idx.All(), []string{"Rot"}) {
		t.Fatalf("expected first casing kept, got %v", idx.All())
	}
}

func TestHolderReloadSwapsAtomically(t *testing.T) {
	path := writeKeywordFile(t, `{"keywords": ["rot"]}`)
	h := NewHolder(path, newLogger())
	before := h.Index()
	if before.Len() != 1 {
		t.Fatalf("expected 1 keyword, got %d", before.Len())
	}

	if err := os.WriteFile(path, []byte(`{"keywords": ["rot", "blau"]}`), 0o644); err != nil {
		t.Fatalf("rewrite keyword file: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if h.Index().Len() != 2 {
		t.Fatalf("expected 2 keywords after reload, got %d", h.Index().Len())
	}
	// The previously published index is untouched.
	if before.Len() != 1 {
		t.Fatal("reload mutated the old index")
	}
}

func TestHolderReloadReportsEmptyResult(t *testing.T) {
	path := writeKeywordFile(t, `{"keywords": ["rot"]}`)
	h := NewHolder(path, newLogger())
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove keyword file: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatal("expected error when reload empties a populated index")
	}
	if h.Index().Len() != 0 {
		t.Fatal("reload should still have published the empty index")
	}
}
