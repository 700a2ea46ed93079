package keyword

import (
	"reflect"
	"testing"
)

func TestDetectFirstOccurrenceOrder(t *testing.T) {
	idx := NewIndex([]string{"rot", "blau"})
	got := Detect("Der Ball ist rot und blau.", idx)
	want := []string{"rot", "blau"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestDetectDeduplicatesAndIgnoresPunctuation(t *testing.T) {
	idx := NewIndex([]string{"rot"})
	got := Detect("Das Auto ist rot, wirklich rot!", idx)
	if !reflect.DeepEqual(got, []string{"rot"}) {
		t.Fatalf("expected single rot, got %v", got)
	}
}

func TestDetectPreservesTextCasing(t *testing.T) {
	idx := NewIndex([]string{"england"})
	got := Detect("England spielt heute.", idx)
	if !reflect.DeepEqual(got, []string{"England"}) {
		t.Fatalf("expected casing from text, got %v", got)
	}
}

func TestDetectUmlauts(t *testing.T) {
	idx := NewIndex([]string{"größe"})
	got := Detect("Die Größe ist enorm", idx)
	if !reflect.DeepEqual(got, []string{"Größe"}) {
		t.Fatalf("expected Größe detected, got %v", got)
	}
}

func TestDetectAccentedLetters(t *testing.T) {
	idx := NewIndex([]string{"café"})
	got := Detect("Das Café ist offen.", idx)
	if !reflect.DeepEqual(got, []string{"Café"}) {
		t.Fatalf("expected Café detected as one token, got %v", got)
	}
}

func TestDetectDedupAcrossCasings(t *testing.T) {
	idx := NewIndex([]string{"rot"})
	got := Detect("Rot ist rot, ROT!", idx)
	if !reflect.DeepEqual(got, []string{"Rot"}) {
		t.Fatalf("expected first casing only, got %v", got)
	}
}

func TestDetectBoundaries(t *testing.T) {
	idx := NewIndex([]string{"rot"})
	if got := Detect("", idx); len(got) != 0 {
		t.Fatalf("empty text should yield empty list, got %v", got)
	}
	if got := Detect("nichts passendes hier", idx); len(got) != 0 {
		t.Fatalf("no matches should yield empty list, got %v", got)
	}
	empty := NewIndex(nil)
	if got := Detect("Der Ball ist rot", empty); len(got) != 0 {
		t.Fatalf("empty index should yield empty list, got %v", got)
	}
}

func TestDetectIdempotent(t *testing.T) {
	idx := NewIndex([]string{"rot", "blau", "england"})
	text := "Der Ball ist rot und blau. England spielt heute."
	first := Detect(text, idx)
	second := Detect(text, idx)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("detection not idempotent: %v vs %v", first, second)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 keywords, got %v", first)
	}
}
