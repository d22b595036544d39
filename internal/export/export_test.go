package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExportTextWritesUniqueFiles(t *testing.T) {
	dir := t.TempDir()
	exp := New(dir, nil)
	ctx := context.Background()

	first, err := exp.ExportText(ctx, "1\n00:00:01,000 --> 00:00:02,000\nHi", "talk.srt")
	if err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	second, err := exp.ExportText(ctx, "other", "talk.srt")
	if err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	if first != filepath.Join(dir, "talk.srt") || second != filepath.Join(dir, "talk (1).srt") {
		t.Fatalf("paths = %s, %s", first, second)
	}
	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1\n00:00:01,000 --> 00:00:02,000\nHi\n" {
		t.Fatalf("content = %q", data)
	}
}

func TestExportTextSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := New(dir, nil).ExportText(context.Background(), "a,b", "../dict: v1?.csv")
	if err != nil {
		t.Fatalf("ExportText: %v", err)
	}
	if path != filepath.Join(dir, "dict- v1.csv") {
		t.Fatalf("path = %s", path)
	}
}

func TestExportTextRejectsInvalidUTF8(t *testing.T) {
	if _, err := New(t.TempDir(), nil).ExportText(context.Background(), string([]byte{0xff, 0xfe}), "x.txt"); err == nil {
		t.Fatal("expected invalid UTF-8 error")
	}
}
