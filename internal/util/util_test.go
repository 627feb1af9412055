// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		input    string
		maxRunes int
		want     string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hi", 2, "hi"},
		{"hello", 3, "hel"},
		{"", 5, ""},
		{"test", 0, ""},
		{"こんにちは世界", 5, "こん..."},
	}

	for _, tc := range tests {
		got := TruncateRunes(tc.input, tc.maxRunes)
		if got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.maxRunes, got, tc.want)
		}
	}
}

func TestTruncateWidth_CJK(t *testing.T) {
	// Each CJK rune is two cells wide; 6 cells fit three runes.
	got := TruncateWidth("日本語のテスト", 9)
	if got == "日本語のテスト" {
		t.Error("expected truncation for wide string")
	}
	if got != "日本語..." {
		t.Errorf("TruncateWidth = %q, want %q", got, "日本語...")
	}
}

func TestCollapseLine(t *testing.T) {
	got := CollapseLine("  first\r\nsecond\nthird  ")
	if got != "first second third" {
		t.Errorf("CollapseLine = %q", got)
	}
}

func TestNormalizeInput(t *testing.T) {
	// "é" as combining sequence should normalize to the precomposed form.
	combining := "é"
	got := NormalizeInput("  " + combining + "  ")
	if got != "é" {
		t.Errorf("NormalizeInput(%q) = %q, want %q", combining, got, "é")
	}

	if NormalizeInput("   ") != "" {
		t.Error("whitespace-only input should normalize to empty")
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("hi", 5); got != "hi   " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("hello", 3); got != "hello" {
		t.Errorf("PadRight should not truncate, got %q", got)
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "data.json")

	if err := AtomicWriteFile(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("content = %q", string(data))
	}

	// Overwrite must replace content completely.
	if err := AtomicWriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "x" {
		t.Errorf("overwritten content = %q", string(data))
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if e.Name() != "data.json" {
			t.Errorf("leftover file %q", e.Name())
		}
	}
}

func TestIntToString(t *testing.T) {
	if IntToString(42) != "42" {
		t.Error("IntToString(42) should be \"42\"")
	}
	if Int64ToString(-7) != "-7" {
		t.Error("Int64ToString(-7) should be \"-7\"")
	}
	if FloatToString(1.5) != "1.50" {
		t.Error("FloatToString(1.5) should be \"1.50\"")
	}
}
