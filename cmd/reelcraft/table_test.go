package main

import (
	"strings"
	"testing"
)

func TestRenderTableCapsWideColumns(t *testing.T) {
	long := "https://assets.example.com/outputs/u-1/" + strings.Repeat("x", 120) + ".mp4"
	out := renderTable(galleryColumns, [][]string{{"clip.mp4", "1.0 kB", "now", long}})
	if strings.Contains(out, long) {
		t.Fatalf("expected locator to be truncated:\n%s", out)
	}
	requireContains(t, out, "…")
	requireContains(t, out, "clip.mp4")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(keysColumns, [][]string{{"gemini"}})
	requireContains(t, out, "gemini")
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output without columns")
	}
}

func TestEllipsize(t *testing.T) {
	if got := ellipsize("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := ellipsize("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
}
