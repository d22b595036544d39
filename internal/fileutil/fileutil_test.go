package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.srt")

	if err := WriteFileAtomic(target, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(target, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content = %q", got)
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files cleaned up, found %d entries", len(entries))
	}
}

func TestCopyToFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "upload.mp3")

	n, sum, err := CopyToFile(strings.NewReader("hello world"), dst, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if n != 11 {
		t.Fatalf("written = %d", n)
	}
	if sum != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("sha256 = %s", sum)
	}
	if _, _, err := CopyToFile(strings.NewReader("again"), dst, 0o644); err == nil {
		t.Fatal("expected existing destination to be rejected")
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	if got := UniquePath(dir, "talk.srt"); got != filepath.Join(dir, "talk.srt") {
		t.Fatalf("UniquePath = %s", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "talk.srt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "talk (1).srt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := UniquePath(dir, "talk.srt"); got != filepath.Join(dir, "talk (2).srt") {
		t.Fatalf("UniquePath = %s", got)
	}
}
