package keyword

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Index holds the configured keyword list. It is immutable after
// construction; concurrent readers need no locking.
type Index struct {
	lower    map[string]struct{}
	original []string
}

type keywordsFile struct {
	Keywords []string `json:"keywords"`
}

// NewIndex builds an index from raw keyword strings. Entries are
// deduplicated under lowercase comparison, first occurrence wins.
func NewIndex(words []string) *Index {
	idx := &Index{lower: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		lc := strings.ToLower(w)
		if _, seen := idx.lower[lc]; seen {
			continue
		}
		idx.lower[lc] = struct{}{}
		idx.original = append(idx.original, w)
	}
	return idx
}

// Load reads the keyword file at path. A missing or malformed file
// degrades to an empty index so the service can still start; the
// failure is logged instead of propagated.
func Load(path string, log *slog.Logger) *Index {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read keyword file", slog.String("path", path), slog.String("error", err.Error()))
		return NewIndex(nil)
	}
	var file keywordsFile
	if err := json.Unmarshal(data, &file); err != nil {
		log.Error("failed to parse keyword file", slog.String("path", path), slog.String("error", err.Error()))
		return NewIndex(nil)
	}
	idx := NewIndex(file.Keywords)
	log.Info("loaded keywords", slog.Int("count", idx.Len()))
	return idx
}

// Contains reports whether token is a configured keyword, compared
// case-insensitively.
func (i *Index) Contains(token string) bool {
	_, ok := i.lower[strings.ToLower(token)]
	return ok
}

// All returns every keyword in lexicographic order, original casing.
// The result is never nil so it serializes as a JSON array.
func (i *Index) All() []string {
	out := make([]string, len(i.original))
	copy(out, i.original)
	sort.Strings(out)
	return out
}

func (i *Index) Len() int {
	return len(i.lower)
}

// Holder shares one index across concurrent requests. Reload swaps the
// whole index atomically, never mutating the published one in place.
type Holder struct {
	path string
	log  *slog.Logger
	ptr  atomic.Pointer[Index]
}

func NewHolder(path string, log *slog.Logger) *Holder {
	h := &Holder{path: path, log: log.With(slog.String("component", "keyword-index"))}
	h.ptr.Store(Load(path, h.log))
	return h
}

func (h *Holder) Index() *Index {
	return h.ptr.Load()
}

// Reload rebuilds the index from the configured path and publishes it.
// Returns an error only when the resulting index is empty while the
// previous one was not, which usually means the file went bad.
func (h *Holder) Reload() error {
	next := Load(h.path, h.log)
	prev := h.ptr.Load()
	h.ptr.Store(next)
	if next.Len() == 0 && prev != nil && prev.Len() > 0 {
		return fmt.Errorf("keyword reload from %s produced an empty index", h.path)
	}
	return nil
}
